package utils

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
)

func TestSlowLogger(t *testing.T) {
	saved := slowLogPeriods
	slowLogPeriods = []time.Duration{10 * time.Millisecond}
	defer func() { slowLogPeriods = saved }()

	logger, logs := logging.NewObservedTestLogger(t)
	stop := SlowLogger(context.Background(), "waiting for laser", logger, "topic", "/scan")
	time.Sleep(100 * time.Millisecond)
	stop()
	count := logs.FilterMessage("waiting for laser").Len()
	test.That(t, count, test.ShouldBeGreaterThan, 0)

	time.Sleep(50 * time.Millisecond)
	test.That(t, logs.FilterMessage("waiting for laser").Len(), test.ShouldEqual, count)
	test.That(t, logs.All()[0].ContextMap()["topic"], test.ShouldEqual, "/scan")
}
