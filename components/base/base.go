// Package base defines a mobile base driven by velocity commands.
package base

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
)

// A Base represents a physical base of a robot.
type Base interface {
	// SetVelocity commands a linear (m/s, x forward) and angular (rad/s, z up) velocity.
	SetVelocity(ctx context.Context, linear, angular r3.Vector) error

	// Stop commands a zero velocity.
	Stop(ctx context.Context) error
}

// twistBase publishes velocity commands as ROS twists.
type twistBase struct {
	pub    ros.Publisher
	logger logging.Logger
}

// NewTwistBase returns a Base that publishes each command on the velocity command topic.
func NewTwistBase(bus ros.Bus, logger logging.Logger) Base {
	return &twistBase{pub: bus.Publisher(ros.TopicCmdVel), logger: logger}
}

func (b *twistBase) SetVelocity(ctx context.Context, linear, angular r3.Vector) error {
	twist := ros.Twist{
		Linear:  ros.Vector3{X: linear.X, Y: linear.Y, Z: linear.Z},
		Angular: ros.Vector3{X: angular.X, Y: angular.Y, Z: angular.Z},
	}
	b.logger.CDebugw(ctx, "publishing velocity command", "linear", linear.X, "angular", angular.Z)
	if err := b.pub.Publish(ctx, twist); err != nil {
		return errors.Wrapf(err, "publishing %s", b.pub.Topic())
	}
	return nil
}

func (b *twistBase) Stop(ctx context.Context) error {
	return b.SetVelocity(ctx, r3.Vector{}, r3.Vector{})
}
