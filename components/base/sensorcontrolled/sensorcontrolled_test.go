package sensorcontrolled

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/turtlelab/localize/components/movementsensor"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/testutils/inject"
)

// recordingBase remembers every commanded velocity.
type recordingBase struct {
	mu       sync.Mutex
	commands []Velocity
}

func (rb *recordingBase) inject() *inject.Base {
	b := &inject.Base{}
	b.SetVelocityFunc = func(ctx context.Context, linear, angular r3.Vector) error {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		rb.commands = append(rb.commands, Velocity{linear.X, angular.Z})
		return nil
	}
	b.StopFunc = func(ctx context.Context) error {
		return b.SetVelocityFunc(ctx, r3.Vector{}, r3.Vector{})
	}
	return b
}

func (rb *recordingBase) sent() []Velocity {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return append([]Velocity(nil), rb.commands...)
}

// scriptedSensor reports each velocity in turn, repeating the last one.
func scriptedSensor(samples *atomic.Int32, script ...Velocity) *inject.MovementSensor {
	current := func() Velocity {
		n := int(samples.Load())
		if n >= len(script) {
			n = len(script) - 1
		}
		return script[n]
	}
	return &inject.MovementSensor{
		LinearVelocityFunc: func(ctx context.Context) (r3.Vector, error) {
			return r3.Vector{X: current().Linear}, nil
		},
		AngularVelocityFunc: func(ctx context.Context) (r3.Vector, error) {
			defer samples.Inc()
			return r3.Vector{Z: current().Angular}, nil
		},
	}
}

func TestDriveReachesVelocity(t *testing.T) {
	rb := &recordingBase{}
	samples := atomic.NewInt32(0)
	ms := scriptedSensor(samples, Velocity{0, 0}, Velocity{0.3, 0}, Velocity{0.49, 0.01})
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithSettle(time.Millisecond))

	_, err := sc.DriveChecked(context.Background(), 0.5, 0, 0.05, 1000, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples.Load(), test.ShouldEqual, int32(3))
	test.That(t, rb.sent(), test.ShouldResemble, []Velocity{{0.5, 0}, {0, 0}})
}

func TestDriveBandIsHalfOpen(t *testing.T) {
	rb := &recordingBase{}
	samples := atomic.NewInt32(0)
	// Exactly cmd-tolerance is outside the band, exactly cmd+tolerance is inside.
	ms := scriptedSensor(samples, Velocity{0.25, 0.3}, Velocity{0.75, 0.3})
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithSettle(0))

	_, err := sc.DriveChecked(context.Background(), 0.5, 0.3, 0.25, 1000, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples.Load(), test.ShouldEqual, int32(2))
}

func TestDriveZeroVelocityIsConfirmed(t *testing.T) {
	rb := &recordingBase{}
	samples := atomic.NewInt32(0)
	ms := scriptedSensor(samples, Velocity{0.5, 0}, Velocity{0.2, 0}, Velocity{0, 0})
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithSettle(0))

	_, err := sc.DriveChecked(context.Background(), 0, 0, 0.05, 1000, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples.Load(), test.ShouldEqual, int32(3))
	test.That(t, rb.sent(), test.ShouldResemble, []Velocity{{0, 0}, {0, 0}})
}

func TestDriveTimeout(t *testing.T) {
	rb := &recordingBase{}
	logger, logs := logging.NewObservedTestLogger(t)
	ms := scriptedSensor(atomic.NewInt32(0), Velocity{0, 0})
	sc := New(rb.inject(), ms, logger, WithSettle(0))

	const (
		timeout  = 100 * time.Millisecond
		pollRate = 20.
		interval = 50 * time.Millisecond
	)
	elapsed := sc.Drive(context.Background(), 0.05, -0.3, 0.05, pollRate, timeout)
	test.That(t, elapsed, test.ShouldBeGreaterThanOrEqualTo, timeout)
	test.That(t, elapsed, test.ShouldBeLessThan, timeout+interval+20*time.Millisecond)

	sent := rb.sent()
	test.That(t, sent[len(sent)-1], test.ShouldResemble, Velocity{0, 0})
	test.That(t, logs.FilterMessage("velocity not confirmed").Len(), test.ShouldEqual, 1)

	_, err := sc.DriveChecked(context.Background(), 0.05, -0.3, 0.05, pollRate, timeout)
	test.That(t, errors.Is(err, ErrMotionNotAchieved), test.ShouldBeTrue)
}

func TestDriveNoOdometry(t *testing.T) {
	rb := &recordingBase{}
	calls := atomic.NewInt32(0)
	ms := &inject.MovementSensor{
		LinearVelocityFunc: func(ctx context.Context) (r3.Vector, error) {
			calls.Inc()
			return r3.Vector{}, movementsensor.ErrNoData
		},
	}
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithSettle(0))

	elapsed, err := sc.DriveChecked(context.Background(), 0.5, 0, 0.05, 30, 3*time.Second)
	test.That(t, errors.Is(err, movementsensor.ErrNoData), test.ShouldBeTrue)
	test.That(t, calls.Load(), test.ShouldEqual, int32(1))
	test.That(t, elapsed, test.ShouldBeLessThan, time.Second)
	test.That(t, rb.sent(), test.ShouldResemble, []Velocity{{0.5, 0}, {0, 0}})
}

func TestDriveStallDetector(t *testing.T) {
	rb := &recordingBase{}
	samples := atomic.NewInt32(0)
	ms := scriptedSensor(samples, Velocity{0, 0})
	var seen []Velocity
	stalled := func(cmd, measured Velocity, elapsed time.Duration) bool {
		seen = append(seen, measured)
		return len(seen) == 2
	}
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithSettle(0), WithStallDetector(stalled))

	_, err := sc.DriveChecked(context.Background(), 0.5, 0, 0.05, 1000, time.Second)
	test.That(t, errors.Is(err, ErrStalled), test.ShouldBeTrue)
	test.That(t, len(seen), test.ShouldEqual, 2)
	test.That(t, rb.sent()[len(rb.sent())-1], test.ShouldResemble, Velocity{0, 0})
}

func TestDriveStopsOnCancelledContext(t *testing.T) {
	rb := &recordingBase{}
	ms := scriptedSensor(atomic.NewInt32(0), Velocity{0, 0})
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithSettle(0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := sc.DriveChecked(ctx, 0.5, 0, 0.05, 100, time.Minute)
	test.That(t, err, test.ShouldEqual, context.Canceled)
	test.That(t, rb.sent()[len(rb.sent())-1], test.ShouldResemble, Velocity{0, 0})
}

func TestDriveSettleUsesClock(t *testing.T) {
	rb := &recordingBase{}
	samples := atomic.NewInt32(0)
	ms := scriptedSensor(samples, Velocity{0.5, 0})
	mock := clock.NewMock()
	sc := New(rb.inject(), ms, logging.NewTestLogger(t), WithClock(mock))

	done := make(chan time.Duration)
	go func() {
		done <- sc.Drive(context.Background(), 0.5, 0, 0.05, 30, 3*time.Second)
	}()

	// Nothing is sampled before the settle delay has passed on the mock clock.
	time.Sleep(20 * time.Millisecond)
	test.That(t, samples.Load(), test.ShouldEqual, int32(0))

	mock.Add(DefaultSettle)
	elapsed := <-done
	test.That(t, samples.Load(), test.ShouldEqual, int32(1))
	test.That(t, elapsed, test.ShouldEqual, DefaultSettle)
}
