package robot

import (
	"context"

	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
)

// Simulator controls the simulated world.
type Simulator struct {
	modelName string
	pub       ros.Publisher
}

// NewSimulator returns a Simulator that moves modelName.
func NewSimulator(bus ros.Bus, modelName string) *Simulator {
	return &Simulator{modelName: modelName, pub: bus.Publisher(ros.TopicSetModelState)}
}

// Publisher is the pose-set sink, exposed for readiness checks.
func (s *Simulator) Publisher() ros.Publisher {
	return s.pub
}

// SetModelPose places the model at (x, y) facing theta, at rest.
func (s *Simulator) SetModelPose(ctx context.Context, x, y, theta float64) error {
	q := spatialmath.YawToQuaternion(theta)
	return s.pub.Publish(ctx, ros.ModelState{
		ModelName: s.modelName,
		Pose: ros.Pose{
			Position:    ros.Vector3{X: x, Y: y},
			Orientation: ros.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
		},
		ReferenceFrame: "world",
	})
}
