package episode

import (
	"fmt"

	"github.com/turtlelab/localize/config"
)

// Action is a discrete motion choice of the agent.
type Action int

// Actions by id. Any other id stops the robot.
const (
	Forward Action = iota
	TurnLeft
	TurnRight
	Stop
)

// NumActions is the size of the action space.
const NumActions = 4

// ActionFromID maps an agent action id to an Action.
func ActionFromID(id int) Action {
	switch a := Action(id); a {
	case Forward, TurnLeft, TurnRight:
		return a
	default:
		return Stop
	}
}

func (a Action) String() string {
	switch a {
	case Forward:
		return "forward"
	case TurnLeft:
		return "turn_left"
	case TurnRight:
		return "turn_right"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Velocity returns the (linear, angular) speeds of a.
func (a Action) Velocity(cfg config.MotionConfig) (float64, float64) {
	switch a {
	case Forward:
		return cfg.LinearForwardSpeed, 0
	case TurnLeft:
		return cfg.LinearTurnSpeed, cfg.AngularSpeed
	case TurnRight:
		return cfg.LinearTurnSpeed, -cfg.AngularSpeed
	default:
		return 0, 0
	}
}
