package slam

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/services/slam/fake"
)

func TestNewMapOrigin(t *testing.T) {
	grid := fake.Room(fake.DefaultRoom())
	m, err := NewMap(grid)
	test.That(t, err, test.ShouldBeNil)

	width, height := m.Size()
	test.That(t, width, test.ShouldEqual, 80)
	test.That(t, height, test.ShouldEqual, 80)
	test.That(t, m.Resolution(), test.ShouldEqual, 0.05)
	// The corner sits at (-2, -2); the origin is shifted to the centre.
	test.That(t, m.Origin().X, test.ShouldAlmostEqual, 0)
	test.That(t, m.Origin().Y, test.ShouldAlmostEqual, 0)

	// Offset corner.
	grid.Info.Origin.Position = ros.Vector3{X: 1, Y: 2}
	m, err = NewMap(grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Origin().X, test.ShouldAlmostEqual, 3)
	test.That(t, m.Origin().Y, test.ShouldAlmostEqual, 4)
}

func TestNewMapInvalid(t *testing.T) {
	_, err := NewMap(ros.OccupancyGrid{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewMap(ros.OccupancyGrid{
		Info: ros.MapMetaData{Resolution: 1, Width: 2, Height: 2},
		Data: []int8{0, 0, 0},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 4")
}

func TestCellAt(t *testing.T) {
	m, err := NewMap(fake.Room(fake.DefaultRoom()))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.CellAt(0, 0), test.ShouldEqual, CellFree)
	test.That(t, m.CellAt(1, 1), test.ShouldEqual, CellOccupied)
	test.That(t, m.CellAt(-1.99, 0), test.ShouldEqual, CellOccupied)
	test.That(t, m.CellAt(5, 0), test.ShouldEqual, CellUnknown)
	test.That(t, m.CellAt(5, 0).String(), test.ShouldEqual, "unknown")

	grid := ros.OccupancyGrid{
		Info: ros.MapMetaData{Resolution: 1, Width: 3, Height: 1, Origin: ros.Pose{Orientation: ros.Quaternion{W: 1}}},
		Data: []int8{-1, 50, 100},
	}
	m, err = NewMap(grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.CellAt(0.5, 0.5), test.ShouldEqual, CellUnknown)
	test.That(t, m.CellAt(1.5, 0.5), test.ShouldEqual, CellUnknown)
	test.That(t, m.CellAt(2.5, 0.5), test.ShouldEqual, CellOccupied)
}

func TestFreeCells(t *testing.T) {
	m, err := NewMap(fake.Room(fake.DefaultRoom()))
	test.That(t, err, test.ShouldBeNil)
	free := m.FreeCells()
	// 78x78 interior minus four 4x4 pillars.
	test.That(t, len(free), test.ShouldEqual, 78*78-4*4*4)
	for _, c := range free {
		test.That(t, m.CellAt(c.X, c.Y), test.ShouldEqual, CellFree)
	}
}

func TestMapService(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	bus := ros.NewMemoryBus(logger)
	defer bus.Close()

	svc := NewMapService(bus, time.Second, logger)
	_, err := svc.GetMap(ctx)
	test.That(t, err, test.ShouldNotBeNil)

	published := 0
	unsubscribe := ros.Subscribe(bus, ros.TopicMap, func(ros.OccupancyGrid) { published++ })
	defer unsubscribe()

	test.That(t, ServeMap(ctx, bus, fake.Room(fake.DefaultRoom())), test.ShouldBeNil)
	test.That(t, published, test.ShouldEqual, 1)

	m, err := svc.GetMap(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.CellAt(0, 0), test.ShouldEqual, CellFree)
}
