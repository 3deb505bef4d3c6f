package lidar

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/utils"
)

// Measurements are the usable samples of one scan.
type Measurements []*Measurement

func (ms Measurements) Len() int {
	return len(ms)
}

func (ms Measurements) Swap(i, j int) {
	ms[i], ms[j] = ms[j], ms[i]
}

func (ms Measurements) Less(i, j int) bool {
	if ms[i].angle < ms[j].angle {
		return true
	}
	if ms[i].angle == ms[j].angle {
		return ms[i].distance < ms[j].distance
	}
	return false
}

// Measurement is one range sample in the sensor frame.
type Measurement struct {
	index    int
	angle    float64
	distance float64
	x        float64
	y        float64
}

// NewMeasurement creates the sample at position index of a scan. The angle is counter-clockwise
// from the sensor x axis:
// 0    - (1, 0) // Forward
// pi/2 - (0, 1) // Left
func NewMeasurement(index int, angle, distance float64) *Measurement {
	return &Measurement{
		index:    index,
		angle:    angle,
		distance: distance,
		x:        distance * math.Cos(angle),
		y:        distance * math.Sin(angle),
	}
}

// Index is the position of the sample in its scan.
func (m *Measurement) Index() int {
	return m.index
}

// in radians
func (m *Measurement) Angle() float64 {
	return m.angle
}

func (m *Measurement) Distance() float64 {
	return m.distance
}

// Point is the sample in the sensor frame.
func (m *Measurement) Point() r3.Vector {
	return r3.Vector{X: m.x, Y: m.y}
}

// MeasurementsFromScan returns the samples of scan with a finite range.
func MeasurementsFromScan(scan ros.LaserScan) Measurements {
	out := make(Measurements, 0, len(scan.Ranges))
	for i, r := range scan.Ranges {
		if !utils.IsFinite(r) {
			continue
		}
		out = append(out, NewMeasurement(i, scan.AngleMin+float64(i)*scan.AngleIncrement, r))
	}
	return out
}
