package movementsensor

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
)

// LatestOdometry returns the most recent odometry message and whether one has arrived.
type LatestOdometry func() (ros.Odometry, bool)

// LatestImu returns the most recent imu message and whether one has arrived.
type LatestImu func() (ros.Imu, bool)

type odometrySensor struct {
	odom LatestOdometry
	imu  LatestImu
}

// NewOdometrySensor returns a MovementSensor reading the wheel odometry. When imu is non-nil,
// orientation and acceleration come from it instead.
func NewOdometrySensor(odom LatestOdometry, imu LatestImu) MovementSensor {
	return &odometrySensor{odom: odom, imu: imu}
}

func (o *odometrySensor) latest() (ros.Odometry, error) {
	msg, ok := o.odom()
	if !ok {
		return ros.Odometry{}, errors.Wrap(ErrNoData, ros.TopicOdom)
	}
	return msg, nil
}

func (o *odometrySensor) Position(ctx context.Context) (r3.Vector, error) {
	msg, err := o.latest()
	if err != nil {
		return r3.Vector{}, err
	}
	p := msg.Pose.Pose.Position
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}, nil
}

func (o *odometrySensor) LinearVelocity(ctx context.Context) (r3.Vector, error) {
	msg, err := o.latest()
	if err != nil {
		return r3.Vector{}, err
	}
	v := msg.Twist.Twist.Linear
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}, nil
}

func (o *odometrySensor) AngularVelocity(ctx context.Context) (r3.Vector, error) {
	msg, err := o.latest()
	if err != nil {
		return r3.Vector{}, err
	}
	w := msg.Twist.Twist.Angular
	return r3.Vector{X: w.X, Y: w.Y, Z: w.Z}, nil
}

func (o *odometrySensor) LinearAcceleration(ctx context.Context) (r3.Vector, error) {
	if o.imu == nil {
		return r3.Vector{}, ErrMethodUnimplementedLinearAcceleration
	}
	msg, ok := o.imu()
	if !ok {
		return r3.Vector{}, errors.Wrap(ErrNoData, ros.TopicImu)
	}
	a := msg.LinearAcceleration
	return r3.Vector{X: a.X, Y: a.Y, Z: a.Z}, nil
}

func (o *odometrySensor) Orientation(ctx context.Context) (spatialmath.Orientation, error) {
	if o.imu != nil {
		msg, ok := o.imu()
		if !ok {
			return nil, errors.Wrap(ErrNoData, ros.TopicImu)
		}
		q := msg.Orientation
		return spatialmath.NewQuaternion(q.X, q.Y, q.Z, q.W), nil
	}
	msg, err := o.latest()
	if err != nil {
		return nil, err
	}
	q := msg.Pose.Pose.Orientation
	return spatialmath.NewQuaternion(q.X, q.Y, q.Z, q.W), nil
}
