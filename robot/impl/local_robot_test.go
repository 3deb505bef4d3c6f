package robotimpl

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/samber/lo"
	"go.viam.com/test"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/episode"
	"github.com/turtlelab/localize/services/slam"
	fakeslam "github.com/turtlelab/localize/services/slam/fake"
)

func testConfig() *config.Config {
	cfg := config.Default()
	// The simulation has no imu.
	cfg.Readiness.Checks["imu"] = config.CheckConfig{Disabled: lo.ToPtr(true)}
	cfg.Motion.Timeout = config.Duration(time.Second)
	return cfg
}

func startSimulated(t *testing.T, cfg *config.Config) (*LocalRobot, *Simulation) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	bus := ros.NewMemoryBus(logger)
	t.Cleanup(func() { test.That(t, bus.Close(), test.ShouldBeNil) })

	r, err := New(cfg, bus, logger)
	test.That(t, err, test.ShouldBeNil)
	sim, err := StartSimulation(context.Background(), bus, cfg, DefaultSimulation(), logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, r.Close(context.Background()), test.ShouldBeNil)
		test.That(t, sim.Close(), test.ShouldBeNil)
	})
	return r, sim
}

func TestScannerOffset(t *testing.T) {
	offset, err := scannerOffset(config.Default())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, offset[0], test.ShouldAlmostEqual, -0.032)
	test.That(t, offset[1], test.ShouldAlmostEqual, 0)
	test.That(t, offset[2], test.ShouldAlmostEqual, 0)
}

func TestSpawnPoints(t *testing.T) {
	world, err := slam.NewMap(fakeslam.Room(fakeslam.DefaultRoom()))
	test.That(t, err, test.ShouldBeNil)

	points := SpawnPoints(world, spawnClearance)
	test.That(t, points, test.ShouldNotBeEmpty)
	test.That(t, len(points), test.ShouldBeLessThan, len(world.FreeCells()))
	for _, p := range points {
		test.That(t, math.Abs(p.X), test.ShouldBeLessThan, 2-spawnClearance)
		test.That(t, math.Abs(p.Y), test.ShouldBeLessThan, 2-spawnClearance)
		test.That(t, world.CellAt(p.X, p.Y), test.ShouldEqual, slam.CellFree)
	}
}

func TestLocalRobotReadiness(t *testing.T) {
	r, _ := startSimulated(t, testConfig())
	ctx := context.Background()

	test.That(t, r.CheckReady(ctx), test.ShouldBeNil)

	m, err := r.Map(ctx)
	test.That(t, err, test.ShouldBeNil)
	width, height := m.Size()
	test.That(t, width, test.ShouldEqual, 80)
	test.That(t, height, test.ShouldEqual, 80)
}

func TestLocalRobotPlaceRandomly(t *testing.T) {
	r, sim := startSimulated(t, testConfig())
	ctx := context.Background()

	x, y, theta, err := r.PlaceRandomly(ctx, sim.World, rand.New(rand.NewPCG(3, 4)))
	test.That(t, err, test.ShouldBeNil)
	tx, ty, ttheta := sim.Base.TruePose()
	test.That(t, tx, test.ShouldAlmostEqual, x, 0.05)
	test.That(t, ty, test.ShouldAlmostEqual, y, 0.05)
	test.That(t, ttheta, test.ShouldAlmostEqual, theta, 0.05)
}

func TestLocalRobotEpisode(t *testing.T) {
	cfg := testConfig()
	cfg.Localization.ReseedOnReset = true
	r, sim := startSimulated(t, cfg)
	ctx := context.Background()
	env := r.Env()

	test.That(t, env.CheckReady(ctx), test.ShouldBeNil)
	env.Reset(ctx)
	test.That(t, sim.Estimator.Parameters()["max_particles"], test.ShouldEqual, 20000)

	start, _, _ := sim.Base.TruePose()
	tr := env.Step(ctx, episode.Forward)
	test.That(t, tr.State.Step, test.ShouldEqual, 1)
	test.That(t, tr.State.Collision, test.ShouldBeFalse)
	test.That(t, tr.Elapsed, test.ShouldBeLessThanOrEqualTo, cfg.Motion.Timeout.D()+time.Second)
	test.That(t, math.IsInf(tr.Observation.Error, 1), test.ShouldBeFalse)
	test.That(t, tr.Observation.Particles, test.ShouldNotBeEmpty)
	test.That(t, tr.Observation.Sectors, test.ShouldHaveLength, cfg.Scan.NumSectors())

	x, _, _ := sim.Base.TruePose()
	test.That(t, x, test.ShouldBeGreaterThan, start)

	tr = env.Step(ctx, episode.Stop)
	test.That(t, tr.State.Step, test.ShouldEqual, 2)
}
