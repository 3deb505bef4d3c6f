package lidar

import (
	"math"

	"github.com/samber/lo"

	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/utils"
)

// Sectors flags each fixed angular slice of the field around the sensor as obstructed.
type Sectors []bool

// NewSectors returns n clear sectors.
func NewSectors(n int) Sectors {
	return make(Sectors, n)
}

// Any reports whether any of the sectors at indices is obstructed. Out of range indices are
// ignored.
func (s Sectors) Any(indices []int) bool {
	return lo.SomeBy(indices, func(i int) bool {
		return i >= 0 && i < len(s) && s[i]
	})
}

// Obstructed returns the indices of the obstructed sectors.
func (s Sectors) Obstructed() []int {
	var out []int
	for i, blocked := range s {
		if blocked {
			out = append(out, i)
		}
	}
	return out
}

// SamplesPerSector is how many consecutive scan samples span sectorAngleDeg, at least one.
func SamplesPerSector(sectorAngleDeg, angleIncrement float64) int {
	if angleIncrement == 0 || !utils.IsFinite(angleIncrement) {
		return 1
	}
	n := int(math.Round(utils.DegToRad(sectorAngleDeg) / math.Abs(angleIncrement)))
	if n < 1 {
		return 1
	}
	return n
}

// ComputeSectors flags sector floor(i / samples_per_sector) for every finite sample i closer
// than threshold. Sample indices past the last sector wrap around.
func ComputeSectors(scan ros.LaserScan, sectorAngleDeg, threshold float64) Sectors {
	numSectors := int(math.Round(360 / sectorAngleDeg))
	sectors := NewSectors(numSectors)
	perSector := SamplesPerSector(sectorAngleDeg, scan.AngleIncrement)
	for i, r := range scan.Ranges {
		if !utils.IsFinite(r) || r >= threshold {
			continue
		}
		sectors[(i/perSector)%numSectors] = true
	}
	return sectors
}

// CollisionThreshold is the range below which a sample flags its sector: the distance covered
// at maxLinearSpeed over horizonSeconds plus margin.
func CollisionThreshold(maxLinearSpeed, horizonSeconds, margin float64) float64 {
	return math.Abs(maxLinearSpeed)*horizonSeconds + margin
}
