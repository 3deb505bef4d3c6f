package robot

import (
	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/referenceframe"
	"github.com/turtlelab/localize/ros"
)

// Robot is the live view of one robot on a bus.
type Robot struct {
	State  SensorState
	Frames referenceframe.FrameSystem

	unsubscribe func()
}

// Attach subscribes to every sensor topic on bus. Each callback performs a single store of the
// latest message; odometry and estimates also refresh the dynamic frame edges.
func Attach(bus ros.Bus, cfg config.RobotConfig, logger logging.Logger) (*Robot, error) {
	fs, err := NewFrameSystem(cfg)
	if err != nil {
		return nil, err
	}
	state := &sensorState{}
	updater := &frameUpdater{fs: fs, odomFrame: cfg.OdomFrame, baseFrame: cfg.BaseFrame, state: state}

	unsubscribeState := state.subscribe(bus)
	unsubscribeOdom := ros.Subscribe(bus, ros.TopicOdom, func(msg ros.Odometry) {
		if err := updater.onOdometry(msg); err != nil {
			logger.Warnw("cannot update odometry frame", "topic", ros.TopicOdom, "error", err)
		}
	})
	unsubscribeEstimate := ros.Subscribe(bus, ros.TopicAmclPose, func(msg ros.PoseWithCovarianceStamped) {
		if err := updater.onEstimate(msg); err != nil {
			logger.Warnw("cannot update map frame", "topic", ros.TopicAmclPose, "error", err)
		}
	})

	return &Robot{
		State:  state,
		Frames: fs,
		unsubscribe: func() {
			unsubscribeEstimate()
			unsubscribeOdom()
			unsubscribeState()
		},
	}, nil
}

// Close detaches from the bus.
func (r *Robot) Close() error {
	r.unsubscribe()
	return nil
}
