package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose: a position and an orientation. The translation is in meters.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

// NewZeroPose returns a pose at (0,0,0) with the identity orientation.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	q := newDualQuaternion()
	q.Real = normalize(o.Quaternion())
	q.setTranslation(p)
	return q
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the frame it is in.
func NewPoseFromPoint(point r3.Vector) Pose {
	q := newDualQuaternion()
	q.setTranslation(point)
	return q
}

// NewPlanarPose returns a pose on the z=0 plane rotated about z by theta radians.
func NewPlanarPose(x, y, theta float64) Pose {
	q := Quaternion(YawToQuaternion(theta))
	return NewPose(r3.Vector{X: x, Y: y}, &q)
}

// Compose treats Poses as functions A(x) and B(x), and produces a new function C(x) = A(B(x)).
// The resulting pose is b expressed in the frame a is expressed in.
func Compose(a, b Pose) Pose {
	result := &dualQuaternion{dualquat.Mul(toDualQuaternion(a).Number, toDualQuaternion(b).Number)}
	result.Real = normalize(result.Real)
	return result
}

// PoseInverse returns a pose such that Compose(p, PoseInverse(p)) is the zero pose.
func PoseInverse(p Pose) Pose {
	return &dualQuaternion{dualquat.ConjQuat(toDualQuaternion(p).Number)}
}

// PoseBetween returns the difference between two poses, i.e. the pose b expressed relative to a.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint expresses pt, given in the frame of p's child, in the frame p is expressed in.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return Compose(p, NewPoseFromPoint(pt)).Point()
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostCoincident(a, b) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseAlmostCoincident will return a bool describing whether 2 poses approximately are at the same 3D coordinate location.
func PoseAlmostCoincident(a, b Pose) bool {
	const epsilon = 1e-8
	return a.Point().ApproxEqual(b.Point()) || a.Point().Sub(b.Point()).Norm() < epsilon
}

// PrettyPrint formats a pose as position and roll/pitch/yaw.
func PrettyPrint(p Pose) string {
	ea := p.Orientation().EulerAngles()
	pt := p.Point()
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Roll:%.3f Pitch:%.3f Yaw:%.3f}",
		pt.X, pt.Y, pt.Z, ea.Roll, ea.Pitch, ea.Yaw)
}

// dualQuaternion is the Pose implementation. The real part is the rotation and the dual part
// half the translation premultiplied onto it.
type dualQuaternion struct {
	dualquat.Number
}

func newDualQuaternion() *dualQuaternion {
	return &dualQuaternion{dualquat.Number{Real: quat.Number{Real: 1}}}
}

func toDualQuaternion(p Pose) *dualQuaternion {
	if q, ok := p.(*dualQuaternion); ok {
		return q
	}
	return NewPose(p.Point(), p.Orientation()).(*dualQuaternion)
}

func (q *dualQuaternion) Point() r3.Vector {
	tQuat := quat.Mul(quat.Scale(2, q.Dual), quat.Conj(q.Real))
	return r3.Vector{X: tQuat.Imag, Y: tQuat.Jmag, Z: tQuat.Kmag}
}

func (q *dualQuaternion) Orientation() Orientation {
	o := Quaternion(q.Real)
	return &o
}

func (q *dualQuaternion) setTranslation(pt r3.Vector) {
	q.Dual = quat.Mul(quat.Number{Imag: pt.X / 2, Jmag: pt.Y / 2, Kmag: pt.Z / 2}, q.Real)
}

func normalize(q quat.Number) quat.Number {
	if norm := quat.Abs(q); norm != 0 && norm != 1 {
		return quat.Scale(1/norm, q)
	}
	return q
}
