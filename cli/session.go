package cli

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/robot"
	robotimpl "github.com/turtlelab/localize/robot/impl"
	"github.com/turtlelab/localize/ros"
)

// sensorTopics are replayed from bags. Actuator topics are left to the robot.
var sensorTopics = []string{
	ros.TopicScan,
	ros.TopicOdom,
	ros.TopicImu,
	ros.TopicAmclPose,
	ros.TopicParticleCloud,
	ros.TopicModelStates,
	ros.TopicMap,
}

var errNoSource = errors.New("choose a data source with --sim or --bag")

// loadConfig reads the --config file, or returns the defaults when none is given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(generalFlagConfig)
	if path == "" {
		return config.Default(), nil
	}
	return config.Read(path)
}

// newLogger builds the command logger: the app error writer at the configured level, plus a
// rotating file when one is configured. --debug overrides the level.
func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, io.Closer) {
	level := cfg.Log.Level
	if c.Bool(generalFlagDebug) {
		level = logging.DEBUG
	}
	appenders := []logging.Appender{logging.NewWriterAppender(c.App.ErrWriter)}
	closer := io.Closer(nopCloser{})
	if cfg.Log.File != "" {
		var file logging.Appender
		file, closer = logging.NewFileAppender(cfg.Log.File, cfg.Log.MaxSizeMB)
		appenders = append(appenders, file)
	}
	return logging.NewLogger("localize", level, appenders...), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// session is a robot attached to an in-process bus fed by a simulation or a bag.
type session struct {
	cfg    *config.Config
	logger logging.Logger
	bus    ros.Bus
	robot  *robotimpl.LocalRobot
	sim    *robotimpl.Simulation

	cancel  context.CancelFunc
	replay  *errgroup.Group
	logFile io.Closer
}

func openSession(c *cli.Context, seed uint64) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if !c.Bool(runFlagSim) && c.String(runFlagBag) == "" {
		return nil, errNoSource
	}

	logger, logFile := newLogger(c, cfg)
	s := &session{cfg: cfg, logger: logger, logFile: logFile}
	s.bus = ros.NewMemoryBus(logger.Sublogger("bus"))
	s.robot, err = robotimpl.New(cfg, s.bus, logger)
	if err != nil {
		return nil, multierr.Combine(err, s.bus.Close(), logFile.Close())
	}
	if c.Bool(generalFlagDebug) {
		printf(c.App.Writer, "%s", robot.FrameTable(cfg.Robot))
	}

	if c.Bool(runFlagSim) {
		simCfg := robotimpl.DefaultSimulation()
		simCfg.Seed = seed
		s.sim, err = robotimpl.StartSimulation(c.Context, s.bus, cfg, simCfg, logger.Sublogger("sim"))
		if err != nil {
			return nil, multierr.Combine(err, s.Close(c.Context))
		}
		return s, nil
	}

	if err := s.startReplay(c.Context, c.String(runFlagBag), c.Float64(runFlagSpeed)); err != nil {
		return nil, multierr.Combine(err, s.Close(c.Context))
	}
	return s, nil
}

func (s *session) startReplay(ctx context.Context, path string, speed float64) error {
	rb, err := ros.ReadBag(path)
	if err != nil {
		return err
	}
	records, err := ros.ReadRecords(rb, sensorTopics)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.Errorf("bag %s has no sensor messages", path)
	}
	s.logger.CInfow(ctx, "replaying bag", "path", path, "messages", len(records), "speed", speed)

	var replayCtx context.Context
	replayCtx, s.cancel = context.WithCancel(ctx)
	s.replay, replayCtx = errgroup.WithContext(replayCtx)
	s.replay.Go(func() error {
		return ros.Replay(replayCtx, s.bus, records, speed, s.logger.Sublogger("replay"))
	})
	return nil
}

// Close stops the data source and the robot.
func (s *session) Close(ctx context.Context) error {
	var err error
	if s.cancel != nil {
		s.cancel()
		if replayErr := s.replay.Wait(); !errors.Is(replayErr, context.Canceled) {
			err = multierr.Combine(err, replayErr)
		}
	}
	err = multierr.Combine(err, s.robot.Close(ctx))
	if s.sim != nil {
		err = multierr.Combine(err, s.sim.Close())
	}
	return multierr.Combine(err, s.bus.Close(), s.logger.Sync(), s.logFile.Close())
}
