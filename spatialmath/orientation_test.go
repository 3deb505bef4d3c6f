package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// represent a 45 degree rotation around the x axis in both representations
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.)}
	ea45x = &EulerAngles{Roll: th, Pitch: 0, Yaw: 0}
)

func TestZeroOrientation(t *testing.T) {
	zero := NewZeroOrientation()
	test.That(t, zero.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, zero.EulerAngles(), test.ShouldResemble, NewEulerAngles())
}

func TestQuaternions(t *testing.T) {
	qq45x := Quaternion(q45x)
	test.That(t, qq45x.EulerAngles().Roll, test.ShouldAlmostEqual, ea45x.Roll)
	test.That(t, qq45x.EulerAngles().Pitch, test.ShouldAlmostEqual, ea45x.Pitch)
	test.That(t, qq45x.EulerAngles().Yaw, test.ShouldAlmostEqual, ea45x.Yaw)
}

func TestEulerAngles(t *testing.T) {
	test.That(t, ea45x.Quaternion().Real, test.ShouldAlmostEqual, q45x.Real)
	test.That(t, ea45x.Quaternion().Imag, test.ShouldAlmostEqual, q45x.Imag)
	test.That(t, ea45x.Quaternion().Jmag, test.ShouldAlmostEqual, q45x.Jmag)
	test.That(t, ea45x.Quaternion().Kmag, test.ShouldAlmostEqual, q45x.Kmag)

	mixed := &EulerAngles{Roll: 0.1, Pitch: -0.4, Yaw: 2.5}
	back := QuatToEulerAngles(mixed.Quaternion())
	test.That(t, back.Roll, test.ShouldAlmostEqual, mixed.Roll)
	test.That(t, back.Pitch, test.ShouldAlmostEqual, mixed.Pitch)
	test.That(t, back.Yaw, test.ShouldAlmostEqual, mixed.Yaw)
}

func TestGimbalLock(t *testing.T) {
	ea := QuatToEulerAngles((&EulerAngles{Pitch: math.Pi / 2}).Quaternion())
	test.That(t, ea.Pitch, test.ShouldAlmostEqual, math.Pi/2)
}

func TestNewQuaternion(t *testing.T) {
	// Unset quaternions from publishers come through as all zero.
	test.That(t, NewQuaternion(0, 0, 0, 0).Quaternion(), test.ShouldResemble, quat.Number{Real: 1})

	q := NewQuaternion(0, 0, 2, 2)
	test.That(t, quat.Abs(q.Quaternion()), test.ShouldAlmostEqual, 1)
	test.That(t, q.EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi/2)
}

func TestOrientationBetween(t *testing.T) {
	a := Quaternion(YawToQuaternion(0.3))
	b := Quaternion(YawToQuaternion(1.0))
	between := OrientationBetween(&a, &b)
	test.That(t, between.EulerAngles().Yaw, test.ShouldAlmostEqual, 0.7)
	test.That(t, OrientationAlmostEqual(&a, &a), test.ShouldBeTrue)

	neg := Quaternion(quat.Scale(-1, a.Quaternion()))
	test.That(t, OrientationAlmostEqual(&a, &neg), test.ShouldBeTrue)
}
