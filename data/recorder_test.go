package data

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/services/episode"
)

func transition(step int, reward, estErr float64, done, collision bool) episode.Transition {
	return episode.Transition{
		Action: episode.Forward,
		Reward: reward,
		Done:   done,
		State:  episode.State{Step: step, Error: estErr, Entropy: math.Inf(1), Collision: collision, Done: done},
	}
}

func TestRecorderSummary(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "episodes.db")

	rec, err := NewRecorder(path, logger)
	test.That(t, err, test.ShouldBeNil)

	id, err := rec.StartEpisode(ctx, "sim")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(id), test.ShouldEqual, 36)

	test.That(t, rec.Record(ctx, id, transition(1, 1, math.Inf(1), false, false)), test.ShouldBeNil)
	test.That(t, rec.Record(ctx, id, transition(2, -100, 2, false, true)), test.ShouldBeNil)
	test.That(t, rec.Record(ctx, id, transition(3, 3, 0.05, true, false)), test.ShouldBeNil)

	s, err := rec.Summary(ctx, id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Steps, test.ShouldEqual, 3)
	test.That(t, s.Done, test.ShouldBeTrue)
	test.That(t, s.Collisions, test.ShouldEqual, 1)
	test.That(t, s.Total, test.ShouldAlmostEqual, -96)
	test.That(t, s.Mean, test.ShouldAlmostEqual, -32)
	test.That(t, s.Min, test.ShouldEqual, -100.)
	test.That(t, s.Max, test.ShouldEqual, 3.)
	test.That(t, s.StdDev, test.ShouldBeGreaterThan, 0)
	test.That(t, s.FinalError, test.ShouldEqual, 0.05)

	_, err = rec.Summary(ctx, "missing")
	test.That(t, err, test.ShouldNotBeNil)

	// A duplicate step fails the insert; the error surfaces on close.
	test.That(t, rec.Record(ctx, id, transition(3, 0, 0, false, false)), test.ShouldBeNil)
	test.That(t, rec.Close(), test.ShouldNotBeNil)

	// Reopening keeps earlier episodes.
	rec, err = NewRecorder(path, logger)
	test.That(t, err, test.ShouldBeNil)
	s, err = rec.Summary(ctx, id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Steps, test.ShouldEqual, 3)
	test.That(t, rec.Close(), test.ShouldBeNil)
}

func TestSummarizeTransitions(t *testing.T) {
	s := SummarizeTransitions("local", []episode.Transition{
		transition(1, 2, 0.4, false, false),
		transition(2, 4, math.Inf(1), true, false),
	})
	test.That(t, s.EpisodeID, test.ShouldEqual, "local")
	test.That(t, s.Steps, test.ShouldEqual, 2)
	test.That(t, s.Done, test.ShouldBeTrue)
	test.That(t, s.Mean, test.ShouldAlmostEqual, 3)
	test.That(t, s.FinalError, test.ShouldEqual, 0.4)

	empty := SummarizeTransitions("none", nil)
	test.That(t, empty.Steps, test.ShouldEqual, 0)
	test.That(t, math.IsInf(empty.FinalError, 1), test.ShouldBeTrue)
}
