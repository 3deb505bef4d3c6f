package utils

import (
	"context"
	"time"

	goutils "go.viam.com/utils"

	"github.com/turtlelab/localize/logging"
)

// slowLogPeriods are the gaps between successive warnings; the last one repeats.
var slowLogPeriods = []time.Duration{2 * time.Second, 3 * time.Second, 5 * time.Second}

// SlowLogger warns with msg and the elapsed time while a wait is in progress. Call the returned
// function once the wait is over.
func SlowLogger(ctx context.Context, msg string, logger logging.Logger, keysAndValues ...interface{}) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	start := time.Now()
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			period := slowLogPeriods[min(i, len(slowLogPeriods)-1)]
			if !goutils.SelectContextOrWait(ctx, period) {
				return
			}
			elapsed := time.Since(start).Round(time.Second).String()
			logger.CWarnw(ctx, msg, append(keysAndValues, "time_elapsed", elapsed)...)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
