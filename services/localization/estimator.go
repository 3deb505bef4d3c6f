package localization

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
)

// Estimator re-seeds the upstream pose estimator over the bus.
type Estimator struct {
	bus     ros.Bus
	initPub ros.Publisher
	cfg     config.LocalizationConfig
	frame   string
	logger  logging.Logger

	seq uint32
}

// NewEstimator returns an Estimator publishing initial poses in frame.
func NewEstimator(bus ros.Bus, cfg config.LocalizationConfig, frame string, logger logging.Logger) *Estimator {
	return &Estimator{
		bus:     bus,
		initPub: bus.Publisher(ros.TopicInitialPose),
		cfg:     cfg,
		frame:   frame,
		logger:  logger,
	}
}

// Publisher is the initial pose sink, exposed for readiness checks.
func (e *Estimator) Publisher() ros.Publisher {
	return e.initPub
}

// InitialPose publishes the planar pose (x, y, theta) with the configured covariance.
func (e *Estimator) InitialPose(ctx context.Context, x, y, theta float64) error {
	e.seq++
	q := spatialmath.YawToQuaternion(theta)
	cov := spatialmath.NewDiagonalCovariance(
		e.cfg.InitialCovariance[0], e.cfg.InitialCovariance[1], 0, 0, 0, e.cfg.InitialCovariance[2])
	msg := ros.PoseWithCovarianceStamped{
		Header: ros.Header{Seq: e.seq, Stamp: ros.NewTime(time.Now()), FrameID: e.frame},
		Pose: ros.PoseWithCovariance{
			Pose: ros.Pose{
				Position:    ros.Vector3{X: x, Y: y},
				Orientation: ros.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
			},
			Covariance: cov.Array(),
		},
	}
	return errors.Wrapf(e.initPub.Publish(ctx, msg), "publishing %s", ros.TopicInitialPose)
}

// Reconfigure sets estimator parameters.
func (e *Estimator) Reconfigure(ctx context.Context, params map[string]interface{}) error {
	_, err := e.bus.Call(ctx, ros.ServiceAmclSetParam, ros.SetParameters{Parameters: params})
	return err
}

// GlobalLocalization spreads the estimator belief over the whole map.
func (e *Estimator) GlobalLocalization(ctx context.Context) error {
	_, err := e.bus.Call(ctx, ros.ServiceGlobalLocal, ros.Empty{})
	return err
}

// Reseed publishes the origin as the initial pose, applies the configured parameters and
// starts global localization. Every step is attempted; the failures are combined.
func (e *Estimator) Reseed(ctx context.Context) error {
	err := e.InitialPose(ctx, 0, 0, 0)
	params, paramsErr := e.cfg.EstimatorParams()
	if paramsErr != nil {
		err = multierr.Combine(err, paramsErr)
	} else if len(params.AsMap()) > 0 {
		err = multierr.Combine(err, e.Reconfigure(ctx, params.AsMap()))
	}
	err = multierr.Combine(err, e.GlobalLocalization(ctx))
	if err == nil {
		e.logger.CInfo(ctx, "estimator re-seeded")
	}
	return err
}
