package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/turtlelab/localize/components/movementsensor"
	"github.com/turtlelab/localize/spatialmath"
)

// MovementSensor is an injected MovementSensor.
type MovementSensor struct {
	movementsensor.MovementSensor
	PositionFunc           func(ctx context.Context) (r3.Vector, error)
	LinearVelocityFunc     func(ctx context.Context) (r3.Vector, error)
	AngularVelocityFunc    func(ctx context.Context) (r3.Vector, error)
	LinearAccelerationFunc func(ctx context.Context) (r3.Vector, error)
	OrientationFunc        func(ctx context.Context) (spatialmath.Orientation, error)
}

// Position func or passthrough.
func (i *MovementSensor) Position(ctx context.Context) (r3.Vector, error) {
	if i.PositionFunc == nil {
		return i.MovementSensor.Position(ctx)
	}
	return i.PositionFunc(ctx)
}

// LinearVelocity func or passthrough.
func (i *MovementSensor) LinearVelocity(ctx context.Context) (r3.Vector, error) {
	if i.LinearVelocityFunc == nil {
		return i.MovementSensor.LinearVelocity(ctx)
	}
	return i.LinearVelocityFunc(ctx)
}

// AngularVelocity func or passthrough.
func (i *MovementSensor) AngularVelocity(ctx context.Context) (r3.Vector, error) {
	if i.AngularVelocityFunc == nil {
		return i.MovementSensor.AngularVelocity(ctx)
	}
	return i.AngularVelocityFunc(ctx)
}

// LinearAcceleration func or passthrough.
func (i *MovementSensor) LinearAcceleration(ctx context.Context) (r3.Vector, error) {
	if i.LinearAccelerationFunc == nil {
		return i.MovementSensor.LinearAcceleration(ctx)
	}
	return i.LinearAccelerationFunc(ctx)
}

// Orientation func or passthrough.
func (i *MovementSensor) Orientation(ctx context.Context) (spatialmath.Orientation, error) {
	if i.OrientationFunc == nil {
		return i.MovementSensor.Orientation(ctx)
	}
	return i.OrientationFunc(ctx)
}
