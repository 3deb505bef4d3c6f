// Package slam serves the occupancy map the robot localizes against.
package slam

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/turtlelab/localize/ros"
)

// CellState classifies one map cell.
type CellState int

const (
	// CellUnknown is unexplored or outside the map.
	CellUnknown CellState = iota
	// CellFree is known free space.
	CellFree
	// CellOccupied is an obstacle.
	CellOccupied
)

// Occupancy probabilities at or above occupiedThreshold are obstacles; at or below
// freeThreshold are free space.
const (
	occupiedThreshold = 65
	freeThreshold     = 25
)

func (c CellState) String() string {
	switch c {
	case CellFree:
		return "free"
	case CellOccupied:
		return "occupied"
	default:
		return "unknown"
	}
}

// Map is an immutable occupancy grid. Its origin is the world position of the grid centre.
type Map struct {
	resolution float64
	width      int
	height     int
	origin     r3.Vector
	yaw        float64
	cells      []int8
}

// NewMap builds a Map from an occupancy grid message. The message origin (the corner of cell
// (0, 0)) is shifted by half the grid extent so the map origin sits at the grid centre.
func NewMap(msg ros.OccupancyGrid) (*Map, error) {
	info := msg.Info
	if info.Resolution <= 0 {
		return nil, errors.Errorf("invalid map resolution %v", info.Resolution)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.Errorf("invalid map size %dx%d", info.Width, info.Height)
	}
	if len(msg.Data) != info.Width*info.Height {
		return nil, errors.Errorf("map has %d cells, expected %d", len(msg.Data), info.Width*info.Height)
	}
	cells := make([]int8, len(msg.Data))
	copy(cells, msg.Data)

	q := info.Origin.Orientation
	yaw := math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	halfX := float64(info.Width) * info.Resolution / 2
	halfY := float64(info.Height) * info.Resolution / 2
	cos, sin := math.Cos(yaw), math.Sin(yaw)
	return &Map{
		resolution: info.Resolution,
		width:      info.Width,
		height:     info.Height,
		origin: r3.Vector{
			X: info.Origin.Position.X + cos*halfX - sin*halfY,
			Y: info.Origin.Position.Y + sin*halfX + cos*halfY,
			Z: info.Origin.Position.Z,
		},
		yaw:   yaw,
		cells: cells,
	}, nil
}

// Resolution is the cell size in meters.
func (m *Map) Resolution() float64 {
	return m.resolution
}

// Size returns the width and height in cells.
func (m *Map) Size() (int, int) {
	return m.width, m.height
}

// Origin is the world position of the grid centre.
func (m *Map) Origin() r3.Vector {
	return m.origin
}

// Cell returns the grid index containing the world point (x, y).
func (m *Map) Cell(x, y float64) (col, row int, ok bool) {
	dx, dy := x-m.origin.X, y-m.origin.Y
	cos, sin := math.Cos(m.yaw), math.Sin(m.yaw)
	// Into the grid frame, then from centre to corner.
	gx := cos*dx + sin*dy + float64(m.width)*m.resolution/2
	gy := -sin*dx + cos*dy + float64(m.height)*m.resolution/2
	col = int(math.Floor(gx / m.resolution))
	row = int(math.Floor(gy / m.resolution))
	if col < 0 || row < 0 || col >= m.width || row >= m.height {
		return col, row, false
	}
	return col, row, true
}

// CellAt classifies the world point (x, y). Points outside the map are unknown.
func (m *Map) CellAt(x, y float64) CellState {
	col, row, ok := m.Cell(x, y)
	if !ok {
		return CellUnknown
	}
	v := m.cells[row*m.width+col]
	switch {
	case v < 0:
		return CellUnknown
	case v >= occupiedThreshold:
		return CellOccupied
	case v <= freeThreshold:
		return CellFree
	default:
		return CellUnknown
	}
}

// FreeCells returns the world centres of every free cell.
func (m *Map) FreeCells() []r3.Vector {
	var out []r3.Vector
	cos, sin := math.Cos(m.yaw), math.Sin(m.yaw)
	for row := 0; row < m.height; row++ {
		for col := 0; col < m.width; col++ {
			v := m.cells[row*m.width+col]
			if v < 0 || v > freeThreshold {
				continue
			}
			gx := (float64(col)+0.5)*m.resolution - float64(m.width)*m.resolution/2
			gy := (float64(row)+0.5)*m.resolution - float64(m.height)*m.resolution/2
			out = append(out, r3.Vector{
				X: m.origin.X + cos*gx - sin*gy,
				Y: m.origin.Y + sin*gx + cos*gy,
			})
		}
	}
	return out
}
