package episode

import (
	"context"
	"math"

	"github.com/turtlelab/localize/components/lidar"
	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/localization"
)

// Scans provides the latest laser scan and particle cloud.
type Scans interface {
	Laser() (ros.LaserScan, bool)
	Particles() (ros.PoseArray, bool)
}

// Reseeder restarts the upstream estimator.
type Reseeder interface {
	Reseed(ctx context.Context) error
}

// Deps are the collaborators of the localization task.
type Deps struct {
	Driver      Driver
	Scans       Scans
	Transformer *lidar.FrameTransformer
	Fuser       *localization.PoseFuser
	// Reseeder is used on reset when localization.reseed_on_reset is set. May be nil.
	Reseeder Reseeder
	// Readiness blocks until every required stream is live. May be nil.
	Readiness func(ctx context.Context) error
}

type localizationTask struct {
	cfg    *config.Config
	deps   Deps
	logger logging.Logger

	points lidar.ScanPoints
}

// NewLocalizationEnv returns the Env of the localization task: FORWARD is refused while a front
// sector is obstructed, episodes end once the estimate is close and confident, and the reward
// grows as error and entropy fall.
func NewLocalizationEnv(cfg *config.Config, deps Deps, logger logging.Logger) *Env {
	task := &localizationTask{cfg: cfg, deps: deps, logger: logger}
	return NewEnv(cfg.Motion, deps.Driver, task.hooks(), logger)
}

func (t *localizationTask) hooks() Hooks {
	return Hooks{
		Readiness: t.deps.Readiness,
		Reset:     t.reset,
		Observe:   t.observe,
		Action:    t.action,
		Done:      IsDoneFunc(t.cfg.Episode),
		Reward:    RewardFunc(t.cfg.Episode),
	}
}

// reset stops the robot and, when configured, re-seeds the estimator. Failures are logged.
func (t *localizationTask) reset(ctx context.Context) {
	motion := t.cfg.Motion
	t.deps.Driver.Drive(ctx, 0, 0, motion.Tolerance, motion.PollRate, motion.Timeout.D())
	t.points = nil
	if !t.cfg.Localization.ReseedOnReset || t.deps.Reseeder == nil {
		return
	}
	if err := t.deps.Reseeder.Reseed(ctx); err != nil {
		t.logger.CWarnw(ctx, "estimator not re-seeded", "error", err)
	}
}

// refreshScan recomputes points and sectors from the latest scan. Header sequence numbers are
// not trusted to change between scans.
func (t *localizationTask) refreshScan(ctx context.Context) {
	scan, ok := t.deps.Scans.Laser()
	if !ok {
		return
	}
	// Errors are logged by the transformer; sectors stay current either way.
	points, _, _ := t.deps.Transformer.TransformScan(ctx, scan)
	t.points = points
}

func (t *localizationTask) action(ctx context.Context, a Action) (float64, float64, bool) {
	linear, angular := a.Velocity(t.cfg.Motion)
	if a != Forward {
		return linear, angular, false
	}
	t.refreshScan(ctx)
	if t.deps.Transformer.Sectors().Any(t.cfg.Scan.FrontSectors) {
		return 0, 0, true
	}
	return linear, angular, false
}

func (t *localizationTask) observe(ctx context.Context) Observation {
	t.refreshScan(ctx)
	fused := t.deps.Fuser.Evaluate()
	obs := Observation{
		Estimate:    fused.Estimate,
		GroundTruth: fused.GroundTruth,
		Error:       fused.Error,
		Entropy:     fused.Entropy,
		Sectors:     t.deps.Transformer.Sectors(),
		Points:      t.points,
	}
	if cloud, ok := t.deps.Scans.Particles(); ok {
		obs.Particles = cloud.Poses
	}
	return obs
}

// IsDoneFunc ends an episode after MaxSteps steps, or once the error is under the distance
// threshold while the entropy is unknown or under the entropy threshold.
func IsDoneFunc(cfg config.EpisodeConfig) func(State) bool {
	return func(s State) bool {
		if s.Step > cfg.MaxSteps {
			return true
		}
		confident := math.IsInf(s.Entropy, 1) || s.Entropy < cfg.EntropyThreshold
		return s.Error < cfg.DistanceThreshold && confident
	}
}

// RewardFunc gives the collision penalty after a blocked step, otherwise
// 1/(error - distance_threshold + 1) + 1/(entropy - entropy_threshold + 5).
func RewardFunc(cfg config.EpisodeConfig) func(State) float64 {
	return func(s State) float64 {
		if s.Collision {
			return cfg.CollisionPenalty
		}
		return 1/(s.Error-cfg.DistanceThreshold+1) + 1/(s.Entropy-cfg.EntropyThreshold+5)
	}
}
