// Package lidar turns laser scans into global-frame points and per-sector obstacle flags.
package lidar

import (
	"context"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/referenceframe"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
	"github.com/turtlelab/localize/utils"
)

// ErrFrameMismatch is returned when a scan is not in the configured sensor frame.
var ErrFrameMismatch = errors.New("scan frame does not match sensor frame")

// ScanPoints are the samples of one scan expressed in the global frame.
type ScanPoints []r3.Vector

// FrameTransformer converts scans into the global frame and keeps the latest obstacle sectors.
type FrameTransformer struct {
	provider    referenceframe.TransformProvider
	sensorFrame string
	globalFrame string
	sectorAngle float64
	threshold   float64
	logger      logging.Logger

	sectors atomic.Pointer[Sectors]
}

// NewFrameTransformer returns a FrameTransformer for scans taken in cfg.SensorFrame. A sample
// flags its sector when closer than the distance covered at maxLinearSpeed over the horizon
// plus the safety margin.
func NewFrameTransformer(
	provider referenceframe.TransformProvider,
	cfg config.ScanConfig,
	maxLinearSpeed float64,
	logger logging.Logger,
) *FrameTransformer {
	ft := &FrameTransformer{
		provider:    provider,
		sensorFrame: cfg.SensorFrame,
		globalFrame: cfg.GlobalFrame,
		sectorAngle: cfg.SectorAngle,
		threshold:   CollisionThreshold(maxLinearSpeed, cfg.Horizon.D().Seconds(), cfg.SafetyMargin),
		logger:      logger,
	}
	empty := NewSectors(cfg.NumSectors())
	ft.sectors.Store(&empty)
	return ft
}

// Threshold is the obstacle range in meters.
func (ft *FrameTransformer) Threshold() float64 {
	return ft.threshold
}

// Sectors returns the obstacle flags computed from the most recent scan.
func (ft *FrameTransformer) Sectors() Sectors {
	s := *ft.sectors.Load()
	out := make(Sectors, len(s))
	copy(out, s)
	return out
}

// TransformScan expresses every finite sample of scan in the global frame and recomputes the
// obstacle sectors. Sectors depend only on the ranges, so they are refreshed even when the
// transform is unavailable. A scan from another frame is rejected before either step.
func (ft *FrameTransformer) TransformScan(ctx context.Context, scan ros.LaserScan) (ScanPoints, Sectors, error) {
	if frame := strings.TrimPrefix(scan.Header.FrameID, "/"); frame != ft.sensorFrame {
		ft.logger.CWarnw(ctx, "ignoring scan", "topic", ros.TopicScan, "frame", frame, "expected", ft.sensorFrame)
		return ScanPoints{}, ft.Sectors(), errors.Wrapf(ErrFrameMismatch, "got %q, expected %q", frame, ft.sensorFrame)
	}

	sectors := ComputeSectors(scan, ft.sectorAngle, ft.threshold)
	ft.sectors.Store(&sectors)

	// Every sample of a scan shares one transform.
	sensorToGlobal, err := ft.provider.Transform(ctx, ft.sensorFrame, ft.globalFrame)
	if err != nil {
		if !errors.Is(err, referenceframe.ErrTransformUnavailable) {
			err = errors.Wrap(referenceframe.ErrTransformUnavailable, err.Error())
		}
		ft.logger.CWarnw(ctx, "transform unavailable", "src", ft.sensorFrame, "dst", ft.globalFrame, "error", err)
		return ScanPoints{}, ft.Sectors(), err
	}

	measurements := MeasurementsFromScan(scan)
	points := make(ScanPoints, 0, len(measurements))
	for _, m := range measurements {
		pt := spatialmath.TransformPoint(sensorToGlobal, m.Point())
		if !utils.IsFinite(pt.X) || !utils.IsFinite(pt.Y) {
			continue
		}
		points = append(points, pt)
	}
	return points, ft.Sectors(), nil
}
