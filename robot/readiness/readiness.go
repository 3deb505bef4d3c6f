// Package readiness blocks startup until every required sensor stream, actuator sink and
// service is live.
package readiness

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/utils"
)

// ConfigurationError reports every required check that failed.
type ConfigurationError struct {
	Failures map[string]error
}

func (e *ConfigurationError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	var combined error
	for _, name := range names {
		combined = multierr.Append(combined, errors.Wrap(e.Failures[name], name))
	}
	return "robot not ready: " + combined.Error()
}

// Unwrap returns the individual failures.
func (e *ConfigurationError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		out = append(out, err)
	}
	return out
}

// Kind tells what a check verifies.
type Kind int

// Check kinds.
const (
	// Topic waits for one message.
	Topic Kind = iota
	// Sink waits for the publisher to have a subscriber.
	Sink
	// Service waits for a provider.
	Service
)

// Check is one readiness probe.
type Check struct {
	Name     string
	Kind     Kind
	Channel  string
	Timeout  time.Duration
	Required bool
	Disabled bool
	// Publisher is the sink to probe for Sink checks.
	Publisher ros.Publisher
}

func (c Check) run(ctx context.Context, bus ros.Bus) error {
	switch c.Kind {
	case Topic:
		_, err := ros.WaitForMessage[interface{}](ctx, bus, c.Channel, c.Timeout)
		return err
	case Sink:
		pub := c.Publisher
		if pub == nil {
			pub = bus.Publisher(c.Channel)
		}
		return ros.WaitForSubscribers(ctx, pub, c.Timeout)
	case Service:
		return ros.WaitForService(ctx, bus, c.Channel, c.Timeout)
	default:
		return errors.Errorf("unknown check kind %d", c.Kind)
	}
}

// DefaultChecks are the probes of the localization task with their timeouts. Every data
// source is required; the sinks and the map service are not.
func DefaultChecks() []Check {
	return []Check{
		{Name: "map", Kind: Service, Channel: ros.ServiceStaticMap, Timeout: 5 * time.Second},
		{Name: "laser", Kind: Topic, Channel: ros.TopicScan, Timeout: 5 * time.Second, Required: true},
		{Name: "odometry", Kind: Topic, Channel: ros.TopicOdom, Timeout: 5 * time.Second, Required: true},
		{Name: "imu", Kind: Topic, Channel: ros.TopicImu, Timeout: 5 * time.Second},
		{Name: "particle_cloud", Kind: Topic, Channel: ros.TopicParticleCloud, Timeout: 5 * time.Second, Required: true},
		{Name: "estimate", Kind: Topic, Channel: ros.TopicAmclPose, Timeout: time.Second, Required: true},
		{Name: "ground_truth", Kind: Topic, Channel: ros.TopicModelStates, Timeout: 5 * time.Second, Required: true},
		{Name: "cmd_vel", Kind: Sink, Channel: ros.TopicCmdVel, Timeout: 5 * time.Second},
		{Name: "initial_pose", Kind: Sink, Channel: ros.TopicInitialPose, Timeout: 5 * time.Second},
		{Name: "set_model_state", Kind: Sink, Channel: ros.TopicSetModelState, Timeout: 5 * time.Second},
	}
}

// ApplyConfig overrides checks by name from cfg. Only the fields an override sets are changed.
func ApplyConfig(checks []Check, cfg config.ReadinessConfig) []Check {
	out := make([]Check, len(checks))
	for i, c := range checks {
		if override, ok := cfg.Checks[c.Name]; ok {
			if override.Disabled != nil {
				c.Disabled = *override.Disabled
			}
			if override.Required != nil {
				c.Required = *override.Required
			}
			if override.Timeout > 0 {
				c.Timeout = override.Timeout.D()
			}
		}
		out[i] = c
	}
	return out
}

// Gate runs readiness checks against a bus.
type Gate struct {
	bus        ros.Bus
	checks     []Check
	concurrent bool
	logger     logging.Logger
}

// NewGate returns a Gate running checks on bus, one after another unless concurrent.
func NewGate(bus ros.Bus, checks []Check, concurrent bool, logger logging.Logger) *Gate {
	return &Gate{bus: bus, checks: checks, concurrent: concurrent, logger: logger}
}

// Run blocks until every enabled check has passed or failed. Failed optional checks are
// logged; failed required checks are returned together as a *ConfigurationError.
func (g *Gate) Run(ctx context.Context) error {
	results := make([]error, len(g.checks))
	runOne := func(i int) {
		c := g.checks[i]
		if c.Disabled {
			g.logger.CDebugw(ctx, "readiness check disabled", "check", c.Name)
			return
		}
		stopSlowLog := utils.SlowLogger(ctx, "waiting for readiness check", g.logger, "check", c.Name, "channel", c.Channel)
		defer stopSlowLog()
		results[i] = c.run(ctx, g.bus)
	}

	if g.concurrent {
		var group errgroup.Group
		for i := range g.checks {
			group.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = group.Wait()
	} else {
		for i := range g.checks {
			runOne(i)
		}
	}

	failures := map[string]error{}
	for i, c := range g.checks {
		err := results[i]
		switch {
		case c.Disabled:
		case err == nil:
			g.logger.CInfow(ctx, "ready", "check", c.Name, "channel", c.Channel)
		case c.Required:
			g.logger.CErrorw(ctx, "required check failed", "check", c.Name, "channel", c.Channel, "error", err)
			failures[c.Name] = err
		default:
			g.logger.CWarnw(ctx, "optional check failed", "check", c.Name, "channel", c.Channel, "error", err)
		}
	}
	if len(failures) > 0 {
		return &ConfigurationError{Failures: failures}
	}
	g.logger.CInfo(ctx, "system check passed")
	return nil
}
