// Package fake implements a simulated differential-drive base. It listens for velocity commands
// on the bus and publishes the odometry and ground truth a real robot and simulator would.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/turtlelab/localize/components/base"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
	"github.com/turtlelab/localize/utils"
)

const (
	// DefaultModelName is the name the base reports itself under in the model states.
	DefaultModelName = "turtlebot3"
	odomFrame        = "odom"
	baseFrame        = "base_footprint"
)

// Config configures the simulated base.
type Config struct {
	ModelName string
	// Lag is the time constant of the first-order response to a velocity command. Zero
	// means commands take effect immediately.
	Lag time.Duration
	// Start is the initial planar pose (x, y, yaw) in the world.
	Start [3]float64
}

// Base is a simulated base. Its true pose lives in the world frame; odometry is reported
// relative to where the base was when it was last reset.
type Base struct {
	cfg    Config
	logger logging.Logger

	odomPub  ros.Publisher
	truthPub ros.Publisher
	unsub    []func()

	mu      sync.Mutex
	truth   [3]float64
	odomRef [3]float64
	cmd     ros.Twist
	vel     ros.Twist
	seq     uint32

	workers utils.StoppableWorkers
}

var _ base.Base = (*Base)(nil)

// NewBase creates a simulated base attached to bus. It does not move until Step or Start is called.
func NewBase(bus ros.Bus, cfg Config, logger logging.Logger) *Base {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	b := &Base{
		cfg:      cfg,
		logger:   logger,
		odomPub:  bus.Publisher(ros.TopicOdom),
		truthPub: bus.Publisher(ros.TopicModelStates),
		truth:    cfg.Start,
		odomRef:  cfg.Start,
	}
	b.unsub = append(b.unsub,
		ros.Subscribe(bus, ros.TopicCmdVel, func(tw ros.Twist) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.cmd = tw
		}),
		ros.Subscribe(bus, ros.TopicSetModelState, func(ms ros.ModelState) {
			if ms.ModelName != b.cfg.ModelName {
				return
			}
			b.Teleport(ms.Pose)
		}),
	)
	bus.RegisterService(ros.TopicSetModelState, func(ctx context.Context, req interface{}) (interface{}, error) {
		ms, ok := req.(ros.ModelState)
		if !ok || ms.ModelName != b.cfg.ModelName {
			return ros.SetModelStateResponse{StatusMessage: "unknown model"}, nil
		}
		b.Teleport(ms.Pose)
		return ros.SetModelStateResponse{Success: true}, nil
	})
	return b
}

// SetVelocity sets the commanded velocity directly, bypassing the bus.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmd = ros.Twist{Linear: ros.Vector3{X: linear.X}, Angular: ros.Vector3{Z: angular.Z}}
	return nil
}

// Stop commands a zero velocity.
func (b *Base) Stop(ctx context.Context) error {
	return b.SetVelocity(ctx, r3.Vector{}, r3.Vector{})
}

// Teleport moves the base to pose, stops it and restarts odometry from there.
func (b *Base) Teleport(pose ros.Pose) {
	yaw := spatialmath.NewQuaternion(pose.Orientation.X, pose.Orientation.Y, pose.Orientation.Z, pose.Orientation.W).
		EulerAngles().Yaw
	b.mu.Lock()
	defer b.mu.Unlock()
	b.truth = [3]float64{pose.Position.X, pose.Position.Y, yaw}
	b.odomRef = b.truth
	b.cmd = ros.Twist{}
	b.vel = ros.Twist{}
}

// TruePose returns the planar world pose (x, y, yaw).
func (b *Base) TruePose() (float64, float64, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truth[0], b.truth[1], b.truth[2]
}

// Step advances the simulation by dt and publishes odometry and ground truth.
func (b *Base) Step(ctx context.Context, dt time.Duration) error {
	odom, truth := b.integrate(dt)
	if err := b.odomPub.Publish(ctx, odom); err != nil {
		return err
	}
	return b.truthPub.Publish(ctx, truth)
}

func (b *Base) integrate(dt time.Duration) (ros.Odometry, ros.ModelStates) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seconds := dt.Seconds()
	alpha := 1.
	if b.cfg.Lag > 0 {
		alpha = math.Min(1, seconds/b.cfg.Lag.Seconds())
	}
	b.vel.Linear.X += (b.cmd.Linear.X - b.vel.Linear.X) * alpha
	b.vel.Angular.Z += (b.cmd.Angular.Z - b.vel.Angular.Z) * alpha

	b.truth[2] = wrapAngle(b.truth[2] + b.vel.Angular.Z*seconds)
	b.truth[0] += b.vel.Linear.X * math.Cos(b.truth[2]) * seconds
	b.truth[1] += b.vel.Linear.X * math.Sin(b.truth[2]) * seconds
	b.seq++

	// odometry is the true pose expressed relative to the reference pose
	ref := spatialmath.NewPlanarPose(b.odomRef[0], b.odomRef[1], b.odomRef[2])
	world := spatialmath.NewPlanarPose(b.truth[0], b.truth[1], b.truth[2])
	rel := spatialmath.PoseBetween(ref, world)

	odom := ros.Odometry{
		Header:       ros.Header{Seq: b.seq, FrameID: odomFrame},
		ChildFrameID: baseFrame,
		Pose:         ros.PoseWithCovariance{Pose: toROSPose(rel), Covariance: make([]float64, 36)},
		Twist:        ros.TwistWithCovariance{Twist: b.vel, Covariance: make([]float64, 36)},
	}
	truth := ros.ModelStates{
		Name:  []string{"ground_plane", b.cfg.ModelName},
		Pose:  []ros.Pose{{Orientation: ros.Quaternion{W: 1}}, toROSPose(world)},
		Twist: []ros.Twist{{}, b.vel},
	}
	return odom, truth
}

// Start steps the simulation every interval in the background until Close.
func (b *Base) Start(interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.workers != nil {
		return
	}
	b.workers = utils.NewStoppableWorkers()
	b.workers.AddPeriodic(interval, func(ctx context.Context) {
		if err := b.Step(ctx, interval); err != nil && ctx.Err() == nil {
			b.logger.CWarnw(ctx, "simulation step failed", "error", err)
		}
	})
}

// Close stops the background simulation and detaches from the bus.
func (b *Base) Close() error {
	b.mu.Lock()
	workers := b.workers
	b.workers = nil
	b.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	for _, unsub := range b.unsub {
		unsub()
	}
	return nil
}

func toROSPose(p spatialmath.Pose) ros.Pose {
	pt := p.Point()
	q := p.Orientation().Quaternion()
	return ros.Pose{
		Position:    ros.Vector3{X: pt.X, Y: pt.Y, Z: pt.Z},
		Orientation: ros.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

func wrapAngle(theta float64) float64 {
	return math.Atan2(math.Sin(theta), math.Cos(theta))
}
