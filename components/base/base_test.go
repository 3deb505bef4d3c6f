package base

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
)

func TestTwistBase(t *testing.T) {
	logger := logging.NewTestLogger(t)
	bus := ros.NewMemoryBus(logger)
	var sent []ros.Twist
	ros.Subscribe(bus, ros.TopicCmdVel, func(tw ros.Twist) { sent = append(sent, tw) })

	b := NewTwistBase(bus, logger)
	test.That(t, b.SetVelocity(context.Background(), r3.Vector{X: 0.05}, r3.Vector{Z: 0.3}), test.ShouldBeNil)
	test.That(t, b.Stop(context.Background()), test.ShouldBeNil)

	test.That(t, sent, test.ShouldResemble, []ros.Twist{
		{Linear: ros.Vector3{X: 0.05}, Angular: ros.Vector3{Z: 0.3}},
		{},
	})

	test.That(t, bus.Close(), test.ShouldBeNil)
	test.That(t, b.Stop(context.Background()), test.ShouldNotBeNil)
}
