// Package robot holds the live view of the robot: the most recent message per sensor topic,
// the frame tree kept current from odometry and the estimate, and the simulator controls.
package robot

import (
	"go.uber.org/atomic"

	"github.com/turtlelab/localize/ros"
)

// SensorState exposes the most recent message received on each sensor topic. Readers never
// block; a false second return means nothing has arrived yet.
type SensorState interface {
	Laser() (ros.LaserScan, bool)
	Odometry() (ros.Odometry, bool)
	Imu() (ros.Imu, bool)
	Estimate() (ros.PoseWithCovarianceStamped, bool)
	Particles() (ros.PoseArray, bool)
	GroundTruth() (ros.ModelStates, bool)
	Map() (ros.OccupancyGrid, bool)
}

type sensorState struct {
	laser       atomic.Pointer[ros.LaserScan]
	odom        atomic.Pointer[ros.Odometry]
	imu         atomic.Pointer[ros.Imu]
	estimate    atomic.Pointer[ros.PoseWithCovarianceStamped]
	particles   atomic.Pointer[ros.PoseArray]
	groundTruth atomic.Pointer[ros.ModelStates]
	occupancy   atomic.Pointer[ros.OccupancyGrid]
}

func load[T any](p *atomic.Pointer[T]) (T, bool) {
	if v := p.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

func store[T any](p *atomic.Pointer[T]) func(T) {
	return func(msg T) {
		p.Store(&msg)
	}
}

func (s *sensorState) Laser() (ros.LaserScan, bool) { return load(&s.laser) }

func (s *sensorState) Odometry() (ros.Odometry, bool) { return load(&s.odom) }

func (s *sensorState) Imu() (ros.Imu, bool) { return load(&s.imu) }

func (s *sensorState) Estimate() (ros.PoseWithCovarianceStamped, bool) { return load(&s.estimate) }

func (s *sensorState) Particles() (ros.PoseArray, bool) { return load(&s.particles) }

func (s *sensorState) GroundTruth() (ros.ModelStates, bool) { return load(&s.groundTruth) }

func (s *sensorState) Map() (ros.OccupancyGrid, bool) { return load(&s.occupancy) }

// subscribe registers one last-write-wins store per sensor topic and returns the combined
// unsubscribe function.
func (s *sensorState) subscribe(bus ros.Bus) func() {
	unsubscribes := []func(){
		ros.Subscribe(bus, ros.TopicScan, store(&s.laser)),
		ros.Subscribe(bus, ros.TopicOdom, store(&s.odom)),
		ros.Subscribe(bus, ros.TopicImu, store(&s.imu)),
		ros.Subscribe(bus, ros.TopicAmclPose, store(&s.estimate)),
		ros.Subscribe(bus, ros.TopicParticleCloud, store(&s.particles)),
		ros.Subscribe(bus, ros.TopicModelStates, store(&s.groundTruth)),
		ros.Subscribe(bus, ros.TopicMap, store(&s.occupancy)),
	}
	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}
