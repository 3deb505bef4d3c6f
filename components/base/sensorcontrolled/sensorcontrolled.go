// Package sensorcontrolled drives a base with feedback from a movement sensor: a velocity is
// commanded once and then confirmed against odometry before the base is stopped again.
package sensorcontrolled

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/turtlelab/localize/components/base"
	"github.com/turtlelab/localize/components/movementsensor"
	"github.com/turtlelab/localize/logging"
	localizeutils "github.com/turtlelab/localize/utils"
)

// DefaultSettle is how long the base is given to react before odometry is first sampled.
const DefaultSettle = 200 * time.Millisecond

// ErrMotionNotAchieved is returned when odometry never confirmed the commanded velocity.
var ErrMotionNotAchieved = errors.New("motion cannot be achieved")

// ErrStalled is returned when the stall detector stopped the confirmation early.
var ErrStalled = errors.New("base stalled")

// Velocity is a planar (linear x, angular z) velocity.
type Velocity struct {
	Linear  float64
	Angular float64
}

// StallDetector inspects each odometry sample taken while a command is being confirmed and
// reports whether the base is stuck.
type StallDetector func(commanded, measured Velocity, elapsed time.Duration) bool

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for the settle delay, polling and timeouts.
func WithClock(c clock.Clock) Option {
	return func(sc *Controller) { sc.clock = c }
}

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(sc *Controller) { sc.settle = d }
}

// WithStallDetector installs a stall detector. None is installed by default.
func WithStallDetector(d StallDetector) Option {
	return func(sc *Controller) { sc.stall = d }
}

// Controller commands a base and confirms each command against a movement sensor.
type Controller struct {
	base       base.Base
	velocities movementsensor.MovementSensor
	logger     logging.Logger
	clock      clock.Clock
	settle     time.Duration
	stall      StallDetector
}

// New returns a Controller for b using ms as velocity feedback.
func New(b base.Base, ms movementsensor.MovementSensor, logger logging.Logger, opts ...Option) *Controller {
	sc := &Controller{
		base:       b,
		velocities: ms,
		logger:     logger,
		clock:      clock.New(),
		settle:     DefaultSettle,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Drive commands (linear, angular), waits until odometry confirms both within tolerance or
// timeout elapses, then stops the base. It is best effort: failures are logged and the elapsed
// time since the command was issued is returned regardless.
func (sc *Controller) Drive(ctx context.Context, linear, angular, tolerance, pollRate float64, timeout time.Duration) time.Duration {
	elapsed, err := sc.DriveChecked(ctx, linear, angular, tolerance, pollRate, timeout)
	if err != nil {
		sc.logger.CWarnw(ctx, "velocity not confirmed", "linear", linear, "angular", angular, "error", err)
	}
	return elapsed
}

// DriveChecked is Drive but also returns why confirmation failed: movementsensor.ErrNoData,
// ErrMotionNotAchieved, ErrStalled, or the error publishing the command.
func (sc *Controller) DriveChecked(
	ctx context.Context, linear, angular, tolerance, pollRate float64, timeout time.Duration,
) (time.Duration, error) {
	start := sc.clock.Now()
	defer sc.stop(ctx)

	if err := sc.base.SetVelocity(ctx, r3.Vector{X: linear}, r3.Vector{Z: angular}); err != nil {
		return sc.clock.Since(start), err
	}

	err := sc.waitUntilAchieved(ctx, start, Velocity{linear, angular}, tolerance, pollRate, timeout)
	return sc.clock.Since(start), err
}

func (sc *Controller) waitUntilAchieved(
	ctx context.Context, start time.Time, cmd Velocity, tolerance, pollRate float64, timeout time.Duration,
) error {
	if !sc.sleep(ctx, sc.settle) {
		return ctx.Err()
	}

	interval := time.Second / 30
	if pollRate > 0 {
		interval = time.Duration(float64(time.Second) / pollRate)
	}

	for {
		measured, err := sc.measure(ctx)
		if err != nil {
			return err
		}
		elapsed := sc.clock.Since(start)
		if sc.stall != nil && sc.stall(cmd, measured, elapsed) {
			return errors.Wrapf(ErrStalled, "after %s", elapsed)
		}
		if localizeutils.WithinBand(measured.Linear, cmd.Linear, tolerance) &&
			localizeutils.WithinBand(measured.Angular, cmd.Angular, tolerance) {
			sc.logger.CDebugw(ctx, "reached velocity", "linear", measured.Linear, "angular", measured.Angular, "elapsed", elapsed)
			return nil
		}
		if elapsed >= timeout {
			return errors.Wrapf(ErrMotionNotAchieved, "measured (%.3f, %.3f) after %s", measured.Linear, measured.Angular, elapsed)
		}
		if !sc.sleep(ctx, interval) {
			return ctx.Err()
		}
	}
}

func (sc *Controller) measure(ctx context.Context) (Velocity, error) {
	linear, err := sc.velocities.LinearVelocity(ctx)
	if err != nil {
		return Velocity{}, err
	}
	angular, err := sc.velocities.AngularVelocity(ctx)
	if err != nil {
		return Velocity{}, err
	}
	return Velocity{Linear: linear.X, Angular: angular.Z}, nil
}

// stop always runs, even when ctx is already done.
func (sc *Controller) stop(ctx context.Context) {
	if err := sc.base.Stop(context.WithoutCancel(ctx)); err != nil {
		sc.logger.CErrorw(ctx, "failed to stop base", "error", err)
	}
}

func (sc *Controller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := sc.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
