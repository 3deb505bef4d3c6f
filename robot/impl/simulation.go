package robotimpl

import (
	"context"
	"time"

	"go.uber.org/multierr"

	fakebase "github.com/turtlelab/localize/components/base/fake"
	fakelidar "github.com/turtlelab/localize/components/lidar/fake"
	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/robot"
	"github.com/turtlelab/localize/ros"
	fakelocalization "github.com/turtlelab/localize/services/localization/fake"
	"github.com/turtlelab/localize/services/slam"
	fakeslam "github.com/turtlelab/localize/services/slam/fake"
)

// Simulation rates. The scanner matches the turtlebot3 LDS.
const (
	simStep           = 20 * time.Millisecond
	simScanPeriod     = 200 * time.Millisecond
	simEstimatePeriod = 100 * time.Millisecond
	simLag            = 50 * time.Millisecond
)

// SimulationConfig configures StartSimulation.
type SimulationConfig struct {
	Room fakeslam.RoomConfig
	// Start is the initial planar pose (x, y, yaw) of the base.
	Start [3]float64
	Seed  uint64
}

// DefaultSimulation is a robot between the pillars of the default room.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{Room: fakeslam.DefaultRoom(), Start: [3]float64{-0.5, -0.5, 0}, Seed: 1}
}

// Simulation stands in for the robot and its simulator on a bus: a kinematic base, a scanner
// ray-casting a generated room, the static map and a simulated estimator.
type Simulation struct {
	World     *slam.Map
	Base      *fakebase.Base
	Lidar     *fakelidar.Lidar
	Estimator *fakelocalization.Estimator
}

// StartSimulation serves the room of simCfg on bus and starts publishing the sensor streams the
// robot described by cfg expects.
func StartSimulation(ctx context.Context, bus ros.Bus, cfg *config.Config, simCfg SimulationConfig, logger logging.Logger) (*Simulation, error) {
	grid := fakeslam.Room(simCfg.Room)
	world, err := slam.NewMap(grid)
	if err != nil {
		return nil, err
	}
	offset, err := scannerOffset(cfg)
	if err != nil {
		return nil, err
	}
	if err := slam.ServeMap(ctx, bus, grid); err != nil {
		return nil, err
	}

	sim := &Simulation{World: world}
	sim.Base = fakebase.NewBase(bus, fakebase.Config{
		ModelName: cfg.Robot.ModelName,
		Lag:       simLag,
		Start:     simCfg.Start,
	}, logger.Sublogger("base"))
	sim.Lidar = fakelidar.NewLidar(bus, world, sim.Base.TruePose, fakelidar.Config{
		Frame:  cfg.Scan.SensorFrame,
		Offset: offset,
	}, logger.Sublogger("lidar"))
	sim.Estimator = fakelocalization.NewEstimator(bus, fakelocalization.Config{
		ModelName: cfg.Robot.ModelName,
		Frame:     cfg.Scan.GlobalFrame,
		Seed:      simCfg.Seed,
	}, logger.Sublogger("amcl"))

	sim.Base.Start(simStep)
	sim.Lidar.Start(simScanPeriod)
	sim.Estimator.Start(simEstimatePeriod)
	logger.CInfow(ctx, "simulation started", "model", cfg.Robot.ModelName, "free_cells", len(world.FreeCells()))
	return sim, nil
}

// scannerOffset is the planar pose (x, y, yaw) of the scanner on the base.
func scannerOffset(cfg *config.Config) ([3]float64, error) {
	fs, err := robot.NewFrameSystem(cfg.Robot)
	if err != nil {
		return [3]float64{}, err
	}
	mount, err := fs.Transform(cfg.Scan.SensorFrame, cfg.Robot.BaseFrame)
	if err != nil {
		return [3]float64{}, err
	}
	pt := mount.Point()
	return [3]float64{pt.X, pt.Y, mount.Orientation().EulerAngles().Yaw}, nil
}

// Close stops every simulated component.
func (s *Simulation) Close() error {
	return multierr.Combine(s.Estimator.Close(), s.Lidar.Close(), s.Base.Close())
}
