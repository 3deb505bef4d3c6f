package cli

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/turtlelab/localize/data"
	"github.com/turtlelab/localize/robot"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/episode"
	"github.com/turtlelab/localize/spatialmath"
)

// CheckAction runs the readiness gate and reports the map.
func CheckAction(c *cli.Context) (err error) {
	s, err := openSession(c, 1)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.Close(c.Context))
	}()

	if err := s.robot.CheckReady(c.Context); err != nil {
		return err
	}
	m, err := s.robot.Map(c.Context)
	if err != nil {
		s.logger.CWarnw(c.Context, "map unavailable", "error", err)
	} else {
		width, height := m.Size()
		printf(c.App.Writer, "map: %dx%d cells at %.3f m, %d free", width, height, m.Resolution(), len(m.FreeCells()))
	}
	fuser := s.robot.Fuser()
	if estimate, ok := fuser.Estimate(); ok {
		printf(c.App.Writer, "estimate: %s entropy %.3f",
			spatialmath.PrettyPrint(estimate.SpatialPose()), estimate.Entropy)
	}
	if truth, ok := fuser.GroundTruth(); ok {
		printf(c.App.Writer, "ground truth: %s", spatialmath.PrettyPrint(truth.SpatialPose()))
	}
	printf(c.App.Writer, "localization error: %.4f", fuser.Evaluate().Error)
	printf(c.App.Writer, "system check passed")
	return nil
}

// RunAction runs episodes with a uniform random policy and prints their summaries.
func RunAction(c *cli.Context) (err error) {
	episodes := c.Int(runFlagEpisodes)
	if episodes < 1 {
		return errors.Errorf("--%s must be at least 1", runFlagEpisodes)
	}
	seed := c.Uint64(runFlagSeed)
	s, err := openSession(c, seed)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.Close(c.Context))
	}()

	var rec *data.Recorder
	if path := c.String(runFlagRecord); path != "" {
		rec, err = data.NewRecorder(path, s.logger.Sublogger("recorder"))
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, rec.Close())
		}()
	}

	if err := s.robot.Env().CheckReady(c.Context); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))
	summaries := make([]data.Summary, 0, episodes)
	for i := 0; i < episodes && c.Context.Err() == nil; i++ {
		summary, err := runEpisode(c.Context, s, rec, rng, i+1)
		if err != nil {
			return err
		}
		s.logger.CInfow(c.Context, "episode finished",
			"episode", summary.EpisodeID, "steps", summary.Steps, "done", summary.Done,
			"total_reward", summary.Total, "mean_reward", summary.Mean, "final_error", summary.FinalError)
		summaries = append(summaries, summary)
	}
	printf(c.App.Writer, "%s", summaryTable(summaries))
	return c.Context.Err()
}

// randomAction draws one action uniformly.
func randomAction(rng *rand.Rand) episode.Action {
	return episode.ActionFromID(rng.IntN(episode.NumActions))
}

func runEpisode(ctx context.Context, s *session, rec *data.Recorder, rng *rand.Rand, n int) (data.Summary, error) {
	env := s.robot.Env()
	if s.sim != nil {
		if _, _, _, err := s.robot.PlaceRandomly(ctx, s.sim.World, rng); err != nil {
			return data.Summary{}, err
		}
	}
	env.Reset(ctx)

	id := fmt.Sprintf("episode-%d", n)
	if rec != nil {
		var err error
		if id, err = rec.StartEpisode(ctx, id); err != nil {
			return data.Summary{}, err
		}
	}

	var transitions []episode.Transition
	for ctx.Err() == nil {
		tr := env.Step(ctx, randomAction(rng))
		transitions = append(transitions, tr)
		if rec != nil {
			if err := rec.Record(ctx, id, tr); err != nil {
				return data.Summary{}, err
			}
		}
		if tr.Done {
			break
		}
	}

	if rec != nil {
		return rec.Summary(ctx, id)
	}
	return data.SummarizeTransitions(id, transitions), nil
}

// summaryTable renders one row per episode and a footer over all of them.
func summaryTable(summaries []data.Summary) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Episode", "Steps", "Done", "Collisions", "Total", "Mean", "StdDev", "Final error"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.EpisodeID, s.Steps, s.Done, s.Collisions,
			fmt.Sprintf("%.3f", s.Total), fmt.Sprintf("%.3f", s.Mean),
			fmt.Sprintf("%.3f", s.StdDev), fmt.Sprintf("%.3f", s.FinalError),
		})
	}
	mean := 0.0
	if len(summaries) > 0 {
		mean = lo.SumBy(summaries, func(s data.Summary) float64 { return s.Total }) / float64(len(summaries))
	}
	done := lo.CountBy(summaries, func(s data.Summary) bool { return s.Done })
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d", done, len(summaries)), "", fmt.Sprintf("%.3f", mean)})
	return t.Render()
}

// ReplayAction writes the messages of a bag as JSON lines.
func ReplayAction(c *cli.Context) error {
	rb, err := ros.ReadBag(c.String(runFlagBag))
	if err != nil {
		return err
	}
	return ros.WriteTopicsJSON(rb, c.App.Writer,
		c.Int64(replayFlagStart), c.Int64(replayFlagEnd), c.StringSlice(replayFlagTopics))
}

// FramesAction prints the frame tree of the configured robot.
func FramesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", robot.FrameTable(cfg.Robot))
	return nil
}
