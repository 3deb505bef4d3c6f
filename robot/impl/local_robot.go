// Package robotimpl assembles a localization robot from a configuration and a bus: sensor
// state, frames, the scan transformer, the pose fuser, the estimator, the closed-loop
// controller, the readiness gate and the episode environment.
package robotimpl

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/turtlelab/localize/components/base"
	"github.com/turtlelab/localize/components/base/sensorcontrolled"
	"github.com/turtlelab/localize/components/lidar"
	"github.com/turtlelab/localize/components/movementsensor"
	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/referenceframe"
	"github.com/turtlelab/localize/robot"
	"github.com/turtlelab/localize/robot/readiness"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/episode"
	"github.com/turtlelab/localize/services/localization"
	"github.com/turtlelab/localize/services/slam"
)

// spawnClearance is the free radius required around a random spawn point.
const spawnClearance = 0.25

const defaultMapTimeout = 5 * time.Second

// LocalRobot is a fully wired localization robot.
type LocalRobot struct {
	cfg    *config.Config
	bus    ros.Bus
	logger logging.Logger

	robot       *robot.Robot
	transformer *lidar.FrameTransformer
	fuser       *localization.PoseFuser
	estimator   *localization.Estimator
	simulator   *robot.Simulator
	base        base.Base
	maps        slam.Service
	controller  *sensorcontrolled.Controller
	gate        *readiness.Gate
	env         *episode.Env
}

// New attaches a robot described by cfg to bus.
func New(cfg *config.Config, bus ros.Bus, logger logging.Logger) (*LocalRobot, error) {
	attached, err := robot.Attach(bus, cfg.Robot, logger.Sublogger("robot"))
	if err != nil {
		return nil, errors.Wrap(err, "attaching robot")
	}

	r := &LocalRobot{cfg: cfg, bus: bus, logger: logger, robot: attached}
	provider := referenceframe.NewTransformProvider(attached.Frames, cfg.Scan.TransformWait.D())
	r.transformer = lidar.NewFrameTransformer(provider, cfg.Scan, cfg.Motion.MaxLinearSpeed(), logger.Sublogger("scan"))
	r.fuser = localization.NewPoseFuser(attached.State, cfg.Robot.ModelName, logger.Sublogger("fuser"))
	r.estimator = localization.NewEstimator(bus, cfg.Localization, cfg.Scan.GlobalFrame, logger.Sublogger("estimator"))
	r.simulator = robot.NewSimulator(bus, cfg.Robot.ModelName)
	r.base = base.NewTwistBase(bus, logger.Sublogger("base"))

	r.controller = sensorcontrolled.New(
		r.base,
		movementsensor.NewOdometrySensor(attached.State.Odometry, attached.State.Imu),
		logger.Sublogger("controller"),
		sensorcontrolled.WithSettle(cfg.Motion.Settle.D()),
	)

	checks := readiness.ApplyConfig(readiness.DefaultChecks(), cfg.Readiness)
	checks = withPublishers(checks, map[string]ros.Publisher{
		ros.TopicInitialPose:   r.estimator.Publisher(),
		ros.TopicSetModelState: r.simulator.Publisher(),
	})
	r.maps = slam.NewMapService(bus, mapTimeout(checks), logger.Sublogger("slam"))
	r.gate = readiness.NewGate(bus, checks, cfg.Readiness.Concurrent, logger.Sublogger("readiness"))

	deps := episode.Deps{
		Driver:      r.controller,
		Scans:       attached.State,
		Transformer: r.transformer,
		Fuser:       r.fuser,
		Readiness:   r.gate.Run,
	}
	if cfg.Localization.ReseedOnReset {
		deps.Reseeder = r.estimator
	}
	r.env = episode.NewLocalizationEnv(cfg, deps, logger.Sublogger("episode"))
	return r, nil
}

// mapTimeout is the timeout of the map service check.
func mapTimeout(checks []readiness.Check) time.Duration {
	for _, c := range checks {
		if c.Channel == ros.ServiceStaticMap {
			return c.Timeout
		}
	}
	return defaultMapTimeout
}

// withPublishers attaches the publishers this robot owns to the sink checks of the matching
// channels so the check observes the same subscriber counts.
func withPublishers(checks []readiness.Check, pubs map[string]ros.Publisher) []readiness.Check {
	for i, c := range checks {
		if pub, ok := pubs[c.Channel]; ok && c.Kind == readiness.Sink {
			checks[i].Publisher = pub
		}
	}
	return checks
}

// Config returns the configuration the robot was built from.
func (r *LocalRobot) Config() *config.Config { return r.cfg }

// Env returns the episode environment.
func (r *LocalRobot) Env() *episode.Env { return r.env }

// State returns the latest sensor messages.
func (r *LocalRobot) State() robot.SensorState { return r.robot.State }

// Frames returns the live frame system.
func (r *LocalRobot) Frames() referenceframe.FrameSystem { return r.robot.Frames }

// Fuser returns the pose fuser.
func (r *LocalRobot) Fuser() *localization.PoseFuser { return r.fuser }

// Estimator returns the bus client of the upstream estimator.
func (r *LocalRobot) Estimator() *localization.Estimator { return r.estimator }

// CheckReady runs the readiness gate.
func (r *LocalRobot) CheckReady(ctx context.Context) error {
	return r.gate.Run(ctx)
}

// Map fetches the static map.
func (r *LocalRobot) Map(ctx context.Context) (*slam.Map, error) {
	return r.maps.GetMap(ctx)
}

// PlaceRandomly teleports the robot to a random free cell of m with room to move around it
// and returns the chosen pose.
func (r *LocalRobot) PlaceRandomly(ctx context.Context, m *slam.Map, rng *rand.Rand) (float64, float64, float64, error) {
	candidates := SpawnPoints(m, spawnClearance)
	if len(candidates) == 0 {
		return 0, 0, 0, errors.New("map has no free spawn point")
	}
	pick := candidates[rng.IntN(len(candidates))]
	theta := (rng.Float64()*2 - 1) * math.Pi
	if err := r.simulator.SetModelPose(ctx, pick.X, pick.Y, theta); err != nil {
		return 0, 0, 0, err
	}
	r.logger.CDebugw(ctx, "placed robot", "x", pick.X, "y", pick.Y, "theta", theta)
	return pick.X, pick.Y, theta, nil
}

// SpawnPoints returns the free cells of m whose surroundings are free up to clearance.
func SpawnPoints(m *slam.Map, clearance float64) []r3.Vector {
	const directions = 8
	return lo.Filter(m.FreeCells(), func(p r3.Vector, _ int) bool {
		for i := 0; i < directions; i++ {
			angle := 2 * math.Pi * float64(i) / directions
			if m.CellAt(p.X+clearance*math.Cos(angle), p.Y+clearance*math.Sin(angle)) != slam.CellFree {
				return false
			}
		}
		return true
	})
}

// Close stops the robot and detaches it from the bus.
func (r *LocalRobot) Close(ctx context.Context) error {
	return multierr.Combine(r.base.Stop(ctx), r.robot.Close())
}
