// Package movementsensor defines the interfaces of a MovementSensor and the odometry-backed
// implementation the velocity controller reads feedback from.
package movementsensor

import (
	"context"
	"errors"

	"github.com/golang/geo/r3"

	"github.com/turtlelab/localize/spatialmath"
)

var (
	// ErrNoData is returned when the sensor has not produced a reading yet.
	ErrNoData = errors.New("no data from movement sensor")
	// ErrMethodUnimplementedOrientation returns error if the Orientation method is unimplemented.
	ErrMethodUnimplementedOrientation = errors.New("Orientation Unimplemented")
	// ErrMethodUnimplementedLinearAcceleration returns error if the LinearAcceleration method is unimplemented.
	ErrMethodUnimplementedLinearAcceleration = errors.New("LinearAcceleration Unimplemented")
)

// A MovementSensor reports information about the robot's direction, position and speed.
type MovementSensor interface {
	Position(ctx context.Context) (r3.Vector, error)           // m, in the sensor's odometry frame
	LinearVelocity(ctx context.Context) (r3.Vector, error)     // m / sec, x forward
	AngularVelocity(ctx context.Context) (r3.Vector, error)    // radians / sec
	LinearAcceleration(ctx context.Context) (r3.Vector, error) // m / sec^2
	Orientation(ctx context.Context) (spatialmath.Orientation, error)
}

// Readings is a helper for getting all readings from a MovementSensor. Unimplemented readings are skipped.
func Readings(ctx context.Context, ms MovementSensor) (map[string]interface{}, error) {
	readings := map[string]interface{}{}

	pos, err := ms.Position(ctx)
	if err != nil {
		return nil, err
	}
	readings["position"] = pos

	vel, err := ms.LinearVelocity(ctx)
	if err != nil {
		return nil, err
	}
	readings["linear_velocity"] = vel

	angVel, err := ms.AngularVelocity(ctx)
	if err != nil {
		return nil, err
	}
	readings["angular_velocity"] = angVel

	accel, err := ms.LinearAcceleration(ctx)
	if err != nil {
		if !errors.Is(err, ErrMethodUnimplementedLinearAcceleration) {
			return nil, err
		}
	} else {
		readings["linear_acceleration"] = accel
	}

	orientation, err := ms.Orientation(ctx)
	if err != nil {
		if !errors.Is(err, ErrMethodUnimplementedOrientation) {
			return nil, err
		}
	} else {
		readings["orientation"] = orientation.EulerAngles()
	}

	return readings, nil
}
