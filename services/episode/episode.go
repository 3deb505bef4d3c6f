// Package episode runs the localization task as a sequence of discrete steps: it turns agent
// actions into confirmed motion, observes the fused localization state, and decides termination
// and reward.
package episode

import (
	"context"
	"math"
	"time"

	"github.com/turtlelab/localize/components/lidar"
	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/localization"
)

// State is the per-episode state. It is only mutated by the Env step functions.
type State struct {
	Step      int
	Done      bool
	Collision bool
	Error     float64
	Entropy   float64
}

func initialState() State {
	return State{Error: math.Inf(1), Entropy: math.Inf(1)}
}

// Observation is what the agent sees after a step.
type Observation struct {
	Particles   []ros.Pose
	Estimate    localization.Pose
	GroundTruth localization.Pose
	Error       float64
	Entropy     float64
	Sectors     lidar.Sectors
	Points      lidar.ScanPoints
}

// Transition is the result of one Step.
type Transition struct {
	Action      Action
	Observation Observation
	Reward      float64
	Done        bool
	State       State
	Elapsed     time.Duration
}

// Driver issues a velocity command and waits until it is achieved.
type Driver interface {
	Drive(ctx context.Context, linear, angular, tolerance, pollRate float64, timeout time.Duration) time.Duration
}

// Hooks are the task specific parts of an episode. Nil hooks are skipped or fall back to
// neutral values.
type Hooks struct {
	// Readiness blocks until the robot can run an episode.
	Readiness func(ctx context.Context) error
	// Reset prepares the world for a new episode.
	Reset func(ctx context.Context)
	// Observe reads the current observation.
	Observe func(ctx context.Context) Observation
	// Action resolves an action into speeds; blocked forces a stop and marks a collision.
	Action func(ctx context.Context, a Action) (linear, angular float64, blocked bool)
	// Done reports whether the episode is over.
	Done func(s State) bool
	// Reward scores the state.
	Reward func(s State) float64
}

// Env is the episode state machine: RUNNING until Done reports true, then DONE until Reset.
type Env struct {
	motion config.MotionConfig
	driver Driver
	hooks  Hooks
	logger logging.Logger

	state State
}

// NewEnv returns an Env that drives with driver and defers task decisions to hooks.
func NewEnv(motion config.MotionConfig, driver Driver, hooks Hooks, logger logging.Logger) *Env {
	return &Env{motion: motion, driver: driver, hooks: hooks, logger: logger, state: initialState()}
}

// State returns a copy of the current state.
func (e *Env) State() State {
	return e.state
}

// CheckReady runs the readiness hook.
func (e *Env) CheckReady(ctx context.Context) error {
	if e.hooks.Readiness == nil {
		return nil
	}
	return e.hooks.Readiness(ctx)
}

// Reset starts a new episode.
func (e *Env) Reset(ctx context.Context) {
	if e.hooks.Reset != nil {
		e.hooks.Reset(ctx)
	}
	e.state = initialState()
}

// ApplyAction resolves action, drives it and counts one step. A blocked action is replaced by a
// stop and flags a collision for this step.
func (e *Env) ApplyAction(ctx context.Context, action Action) time.Duration {
	linear, angular := action.Velocity(e.motion)
	blocked := false
	if e.hooks.Action != nil {
		linear, angular, blocked = e.hooks.Action(ctx, action)
	}
	e.state.Collision = blocked
	if blocked {
		e.logger.CWarnw(ctx, "obstacle ahead, stopping instead", "action", action.String())
		linear, angular = 0, 0
	}
	e.state.Step++
	return e.driver.Drive(ctx, linear, angular, e.motion.Tolerance, e.motion.PollRate, e.motion.Timeout.D())
}

// Observation reads the current observation and records its error and entropy.
func (e *Env) Observation(ctx context.Context) Observation {
	obs := Observation{Error: math.Inf(1), Entropy: math.Inf(1)}
	if e.hooks.Observe != nil {
		obs = e.hooks.Observe(ctx)
	}
	e.state.Error = obs.Error
	e.state.Entropy = obs.Entropy
	return obs
}

// IsDone evaluates termination and latches the done flag.
func (e *Env) IsDone() bool {
	if e.hooks.Done != nil && e.hooks.Done(e.state) {
		e.state.Done = true
	}
	return e.state.Done
}

// Reward scores the current state.
func (e *Env) Reward() float64 {
	if e.hooks.Reward == nil {
		return 0
	}
	return e.hooks.Reward(e.state)
}

// Step applies action, then observes, tests termination and scores the result.
func (e *Env) Step(ctx context.Context, action Action) Transition {
	elapsed := e.ApplyAction(ctx, action)
	obs := e.Observation(ctx)
	done := e.IsDone()
	reward := e.Reward()
	e.logger.CDebugw(ctx, "step",
		"step", e.state.Step, "action", action.String(), "error", obs.Error, "entropy", obs.Entropy,
		"reward", reward, "done", done)
	return Transition{
		Action:      action,
		Observation: obs,
		Reward:      reward,
		Done:        done,
		State:       e.state,
		Elapsed:     elapsed,
	}
}
