// Package localization turns estimator and ground-truth messages into comparable poses, scores
// the estimate against the truth, and re-seeds the upstream estimator.
package localization

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
	"github.com/turtlelab/localize/utils"
)

// Pose is a position and orientation with the optional uncertainty reported alongside it.
type Pose struct {
	Frame       string
	Stamp       time.Time
	Position    r3.Vector
	Orientation spatialmath.Orientation
	Euler       spatialmath.EulerAngles
	// Covariance is nil when the source message carries none.
	Covariance *spatialmath.Covariance
	// Entropy is the dispersion of the estimator belief; +Inf when unknown.
	Entropy float64
}

// SpatialPose returns the pose without its uncertainty.
func (p Pose) SpatialPose() spatialmath.Pose {
	return spatialmath.NewPose(p.Position, p.Orientation)
}

func newPose(frame string, stamp time.Time, msg ros.Pose) Pose {
	o := spatialmath.NewQuaternion(msg.Orientation.X, msg.Orientation.Y, msg.Orientation.Z, msg.Orientation.W)
	return Pose{
		Frame:       frame,
		Stamp:       stamp,
		Position:    r3.Vector{X: msg.Position.X, Y: msg.Position.Y, Z: msg.Position.Z},
		Orientation: o,
		Euler:       *o.EulerAngles(),
		Entropy:     math.Inf(1),
	}
}

// covariance returns nil for an empty covariance field.
func covariance(values []float64) (*spatialmath.Covariance, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return spatialmath.NewCovariance(values)
}

// FromEstimate converts an estimator output. The covariance is copied verbatim.
func FromEstimate(msg ros.PoseWithCovarianceStamped) (Pose, error) {
	p := newPose(msg.Header.FrameID, msg.Header.Stamp.Time(), msg.Pose.Pose)
	cov, err := covariance(msg.Pose.Covariance)
	if err != nil {
		return Pose{}, err
	}
	p.Covariance = cov
	if msg.Entropy != nil {
		p.Entropy = *msg.Entropy
	}
	return p, nil
}

// FromModelState converts a ground-truth model state, which has no covariance.
func FromModelState(msg ros.ModelState) Pose {
	return newPose(msg.ReferenceFrame, time.Time{}, msg.Pose)
}

// FromOdometry converts the pose part of an odometry message.
func FromOdometry(msg ros.Odometry) (Pose, error) {
	p := newPose(msg.Header.FrameID, msg.Header.Stamp.Time(), msg.Pose.Pose)
	cov, err := covariance(msg.Pose.Covariance)
	if err != nil {
		return Pose{}, err
	}
	p.Covariance = cov
	return p, nil
}

// Fuse converts any supported pose message into a Pose.
func Fuse(msg interface{}) (Pose, error) {
	switch m := msg.(type) {
	case ros.PoseWithCovarianceStamped:
		return FromEstimate(m)
	case *ros.PoseWithCovarianceStamped:
		if m == nil {
			break
		}
		return FromEstimate(*m)
	case ros.ModelState:
		return FromModelState(m), nil
	case *ros.ModelState:
		if m == nil {
			break
		}
		return FromModelState(*m), nil
	case ros.Odometry:
		return FromOdometry(m)
	case *ros.Odometry:
		if m == nil {
			break
		}
		return FromOdometry(*m)
	}
	return Pose{}, errors.Wrap(utils.NewUnexpectedTypeError[ros.PoseWithCovarianceStamped](msg), "cannot fuse pose")
}

// EstimateError scores how far a is from b: the squared position distance plus the squared
// Euler angle distance plus the squared covariance difference. Angles are not wrapped and the
// terms mix units; only "lower is better" is meaningful. A missing covariance counts as zero.
func EstimateError(a, b Pose) float64 {
	position := a.Position.Sub(b.Position).Norm2()
	euler := utils.Square(floats.Distance(a.Euler.Vector(), b.Euler.Vector(), 2))
	return position + euler + spatialmath.CovarianceSquaredDifference(a.Covariance, b.Covariance)
}
