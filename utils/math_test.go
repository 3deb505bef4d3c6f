package utils

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/atomic"
	"go.viam.com/test"
)

func TestWithinBand(t *testing.T) {
	test.That(t, WithinBand(0.5, 0.5, 0.05), test.ShouldBeTrue)
	test.That(t, WithinBand(0.55, 0.5, 0.05), test.ShouldBeTrue)
	test.That(t, WithinBand(0.45, 0.5, 0.05), test.ShouldBeFalse)
	test.That(t, WithinBand(0, 0, 0.05), test.ShouldBeTrue)
	test.That(t, WithinBand(math.NaN(), 0, 0.05), test.ShouldBeFalse)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(1.5), test.ShouldBeTrue)
	test.That(t, IsFinite(math.Inf(1)), test.ShouldBeFalse)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
	test.That(t, IsFinite(math.NaN()), test.ShouldBeFalse)
}

func TestAngles(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90)
}

func TestStoppableWorkers(t *testing.T) {
	ticks := atomic.NewInt32(0)
	sw := NewStoppableWorkers()
	sw.AddPeriodic(time.Millisecond, func(context.Context) { ticks.Inc() })

	started := make(chan struct{})
	sw.AddWorkers(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	for ticks.Load() < 3 {
		time.Sleep(time.Millisecond)
	}
	sw.Stop()
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// Workers added after Stop never run.
	ran := atomic.NewBool(false)
	sw.AddWorkers(func(context.Context) { ran.Store(true) })
	test.That(t, ran.Load(), test.ShouldBeFalse)
}
