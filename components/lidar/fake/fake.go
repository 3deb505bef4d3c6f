// Package fake implements a simulated laser scanner that ray-casts against an occupancy map.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/slam"
	"github.com/turtlelab/localize/utils"
)

// Config configures the simulated scanner. Zero fields take the turtlebot3 LDS values.
type Config struct {
	Frame    string
	Samples  int
	RangeMin float64
	RangeMax float64
	// Offset is the planar mounting pose (x, y, yaw) of the scanner on the base.
	Offset [3]float64
}

func (cfg *Config) setDefaults() {
	if cfg.Frame == "" {
		cfg.Frame = "base_scan"
	}
	if cfg.Samples == 0 {
		cfg.Samples = 360
	}
	if cfg.RangeMin == 0 {
		cfg.RangeMin = 0.12
	}
	if cfg.RangeMax == 0 {
		cfg.RangeMax = 3.5
	}
}

// PoseSource reports the true planar pose (x, y, yaw) of the base in the world.
type PoseSource func() (float64, float64, float64)

// Lidar publishes simulated scans of a map from the pose of a base.
type Lidar struct {
	cfg    Config
	world  *slam.Map
	pose   PoseSource
	pub    ros.Publisher
	logger logging.Logger

	mu      sync.Mutex
	seq     uint32
	workers utils.StoppableWorkers
}

// NewLidar creates a simulated scanner observing world from pose.
func NewLidar(bus ros.Bus, world *slam.Map, pose PoseSource, cfg Config, logger logging.Logger) *Lidar {
	cfg.setDefaults()
	return &Lidar{cfg: cfg, world: world, pose: pose, pub: bus.Publisher(ros.TopicScan), logger: logger}
}

// Scan ray-casts one full revolution. Rays that hit nothing within range read +Inf.
func (l *Lidar) Scan() ros.LaserScan {
	x, y, yaw := l.pose()
	cos, sin := math.Cos(yaw), math.Sin(yaw)
	sx := x + cos*l.cfg.Offset[0] - sin*l.cfg.Offset[1]
	sy := y + sin*l.cfg.Offset[0] + cos*l.cfg.Offset[1]
	syaw := yaw + l.cfg.Offset[2]

	increment := 2 * math.Pi / float64(l.cfg.Samples)
	ranges := make(ros.Ranges, l.cfg.Samples)
	for i := range ranges {
		ranges[i] = l.cast(sx, sy, syaw+float64(i)*increment)
	}

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	return ros.LaserScan{
		Header: ros.Header{
			Seq:     seq,
			Stamp:   ros.NewTime(time.Now()),
			FrameID: l.cfg.Frame,
		},
		AngleMin:       0,
		AngleMax:       2*math.Pi - increment,
		AngleIncrement: increment,
		RangeMin:       l.cfg.RangeMin,
		RangeMax:       l.cfg.RangeMax,
		Ranges:         ranges,
	}
}

func (l *Lidar) cast(x, y, angle float64) float64 {
	step := l.world.Resolution() / 2
	dx, dy := math.Cos(angle), math.Sin(angle)
	for r := l.cfg.RangeMin; r <= l.cfg.RangeMax; r += step {
		if l.world.CellAt(x+r*dx, y+r*dy) == slam.CellOccupied {
			return r
		}
	}
	return math.Inf(1)
}

// Publish sends one scan.
func (l *Lidar) Publish(ctx context.Context) error {
	return l.pub.Publish(ctx, l.Scan())
}

// Start publishes a scan every interval until Close.
func (l *Lidar) Start(interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return
	}
	l.workers = utils.NewStoppableWorkers()
	l.workers.AddPeriodic(interval, func(ctx context.Context) {
		if err := l.Publish(ctx); err != nil {
			l.logger.CDebugw(ctx, "scan not published", "topic", ros.TopicScan, "error", err)
		}
	})
}

// Close stops publishing.
func (l *Lidar) Close() error {
	l.mu.Lock()
	workers := l.workers
	l.workers = nil
	l.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
