// Package fake generates occupancy maps for simulation and tests.
package fake

import (
	"github.com/turtlelab/localize/ros"
)

// Occupancy values written into generated grids.
const (
	Free     int8 = 0
	Occupied int8 = 100
	Unknown  int8 = -1
)

// Obstacle is an axis-aligned occupied box in world coordinates.
type Obstacle struct {
	MinX, MinY, MaxX, MaxY float64
}

// RoomConfig describes a walled rectangular room centred on the world origin.
type RoomConfig struct {
	Width      float64
	Height     float64
	Resolution float64
	Obstacles  []Obstacle
}

// DefaultRoom is a 4 x 4 m room with four pillars, similar in scale to the turtlebot3 world.
func DefaultRoom() RoomConfig {
	return RoomConfig{
		Width:      4,
		Height:     4,
		Resolution: 0.05,
		Obstacles: []Obstacle{
			{MinX: -1.1, MinY: -1.1, MaxX: -0.9, MaxY: -0.9},
			{MinX: 0.9, MinY: -1.1, MaxX: 1.1, MaxY: -0.9},
			{MinX: -1.1, MinY: 0.9, MaxX: -0.9, MaxY: 1.1},
			{MinX: 0.9, MinY: 0.9, MaxX: 1.1, MaxY: 1.1},
		},
	}
}

// Room renders cfg as an occupancy grid. The outermost ring of cells is wall.
func Room(cfg RoomConfig) ros.OccupancyGrid {
	width := int(cfg.Width / cfg.Resolution)
	height := int(cfg.Height / cfg.Resolution)
	grid := ros.OccupancyGrid{
		Header: ros.Header{FrameID: "map"},
		Info: ros.MapMetaData{
			Resolution: cfg.Resolution,
			Width:      width,
			Height:     height,
			Origin: ros.Pose{
				Position:    ros.Vector3{X: -cfg.Width / 2, Y: -cfg.Height / 2},
				Orientation: ros.Quaternion{W: 1},
			},
		},
		Data: make([]int8, width*height),
	}
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x := -cfg.Width/2 + (float64(col)+0.5)*cfg.Resolution
			y := -cfg.Height/2 + (float64(row)+0.5)*cfg.Resolution
			v := Free
			if row == 0 || col == 0 || row == height-1 || col == width-1 {
				v = Occupied
			}
			for _, o := range cfg.Obstacles {
				if x >= o.MinX && x <= o.MaxX && y >= o.MinY && y <= o.MaxY {
					v = Occupied
				}
			}
			grid.Data[row*width+col] = v
		}
	}
	return grid
}
