// Package fake implements a simulated pose estimator. It follows the ground truth with a
// Gaussian belief whose spread shrinks as the robot moves, the way a particle filter converges.
package fake

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
	"github.com/turtlelab/localize/utils"
)

// Config configures the simulated estimator. Zero fields take defaults.
type Config struct {
	ModelName string
	Frame     string
	// Particles is the size of the published particle cloud.
	Particles int
	// ConvergenceRate is how much the spread shrinks per meter travelled; turning counts
	// at TurnWeight meters per radian.
	ConvergenceRate float64
	TurnWeight      float64
	// MinSigma bounds the spread (x, y, yaw) from below.
	MinSigma [3]float64
	// GlobalSigma is the spread (x, y, yaw) after global localization.
	GlobalSigma [3]float64
	Seed        uint64
}

func (cfg *Config) setDefaults() {
	if cfg.ModelName == "" {
		cfg.ModelName = "turtlebot3"
	}
	if cfg.Frame == "" {
		cfg.Frame = "map"
	}
	if cfg.Particles == 0 {
		cfg.Particles = 200
	}
	if cfg.ConvergenceRate == 0 {
		cfg.ConvergenceRate = 2
	}
	if cfg.TurnWeight == 0 {
		cfg.TurnWeight = 0.2
	}
	if cfg.MinSigma == [3]float64{} {
		cfg.MinSigma = [3]float64{0.02, 0.02, 0.03}
	}
	if cfg.GlobalSigma == [3]float64{} {
		cfg.GlobalSigma = [3]float64{1.5, 1.5, math.Pi}
	}
}

// Estimator is a simulated estimator on a bus.
type Estimator struct {
	cfg    Config
	logger logging.Logger

	posePub     ros.Publisher
	particlePub ros.Publisher
	unsub       []func()

	mu      sync.Mutex
	rng     *rand.Rand
	truth   [3]float64
	hasLast bool
	last    [3]float64
	offset  [3]float64
	sigma   [3]float64
	seq     uint32
	params  map[string]interface{}
	workers utils.StoppableWorkers
}

// NewEstimator attaches a simulated estimator to bus. It listens for ground truth and initial
// poses and serves the global localization and parameter services.
func NewEstimator(bus ros.Bus, cfg Config, logger logging.Logger) *Estimator {
	cfg.setDefaults()
	e := &Estimator{
		cfg:         cfg,
		logger:      logger,
		posePub:     bus.Publisher(ros.TopicAmclPose),
		particlePub: bus.Publisher(ros.TopicParticleCloud),
		rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		sigma:       cfg.GlobalSigma,
		params:      map[string]interface{}{},
	}
	e.unsub = append(e.unsub,
		ros.Subscribe(bus, ros.TopicModelStates, e.onGroundTruth),
		ros.Subscribe(bus, ros.TopicInitialPose, e.onInitialPose),
	)
	bus.RegisterService(ros.ServiceGlobalLocal, func(ctx context.Context, req interface{}) (interface{}, error) {
		e.GlobalLocalization()
		return ros.Empty{}, nil
	})
	bus.RegisterService(ros.ServiceAmclSetParam, func(ctx context.Context, req interface{}) (interface{}, error) {
		if set, ok := req.(ros.SetParameters); ok {
			e.setParameters(set.Parameters)
		}
		return ros.Empty{}, nil
	})
	return e
}

func (e *Estimator) onGroundTruth(states ros.ModelStates) {
	state, ok := states.Find(e.cfg.ModelName)
	if !ok {
		return
	}
	yaw := spatialmath.NewQuaternion(
		state.Pose.Orientation.X, state.Pose.Orientation.Y, state.Pose.Orientation.Z, state.Pose.Orientation.W,
	).EulerAngles().Yaw
	current := [3]float64{state.Pose.Position.X, state.Pose.Position.Y, yaw}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasLast {
		travel := math.Hypot(current[0]-e.last[0], current[1]-e.last[1]) +
			e.cfg.TurnWeight*math.Abs(wrap(current[2]-e.last[2]))
		shrink := math.Exp(-e.cfg.ConvergenceRate * travel)
		for i := range e.sigma {
			e.sigma[i] = math.Max(e.cfg.MinSigma[i], e.sigma[i]*shrink)
			e.offset[i] *= shrink
		}
	}
	e.truth = current
	e.last = current
	e.hasLast = true
}

// onInitialPose centres the belief on the given pose with its covariance.
func (e *Estimator) onInitialPose(msg ros.PoseWithCovarianceStamped) {
	p := msg.Pose.Pose
	yaw := spatialmath.NewQuaternion(p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W).EulerAngles().Yaw
	cov := msg.Pose.Covariance

	e.mu.Lock()
	defer e.mu.Unlock()
	e.offset = [3]float64{p.Position.X - e.truth[0], p.Position.Y - e.truth[1], wrap(yaw - e.truth[2])}
	if len(cov) == spatialmath.CovarianceDim*spatialmath.CovarianceDim {
		e.sigma = [3]float64{
			math.Max(e.cfg.MinSigma[0], math.Sqrt(cov[0])),
			math.Max(e.cfg.MinSigma[1], math.Sqrt(cov[7])),
			math.Max(e.cfg.MinSigma[2], math.Sqrt(cov[35])),
		}
	}
}

// GlobalLocalization forgets the current belief.
func (e *Estimator) GlobalLocalization() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sigma = e.cfg.GlobalSigma
	e.offset = [3]float64{
		e.rng.NormFloat64() * e.cfg.GlobalSigma[0] / 2,
		e.rng.NormFloat64() * e.cfg.GlobalSigma[1] / 2,
		e.rng.NormFloat64() * e.cfg.GlobalSigma[2] / 2,
	}
}

func (e *Estimator) setParameters(params map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range params {
		e.params[k] = v
	}
	e.logger.Debugw("estimator parameters set", "params", params)
}

// Parameters returns a copy of every parameter set so far.
func (e *Estimator) Parameters() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]interface{}, len(e.params))
	for k, v := range e.params {
		out[k] = v
	}
	return out
}

// Sigma returns the current spread (x, y, yaw).
func (e *Estimator) Sigma() [3]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sigma
}

// Publish sends the current estimate and a particle cloud drawn from the belief.
func (e *Estimator) Publish(ctx context.Context) error {
	e.mu.Lock()
	e.seq++
	seq := e.seq
	mean := []float64{e.truth[0] + e.offset[0], e.truth[1] + e.offset[1], wrap(e.truth[2] + e.offset[2])}
	sigma := e.sigma
	belief, ok := distmv.NewNormal(mean, mat.NewDiagDense(3, []float64{
		sigma[0] * sigma[0], sigma[1] * sigma[1], sigma[2] * sigma[2],
	}), e.rng)
	var particles []ros.Pose
	if ok {
		particles = make([]ros.Pose, e.cfg.Particles)
		sample := make([]float64, 3)
		for i := range particles {
			belief.Rand(sample)
			particles[i] = planarPose(sample[0], sample[1], sample[2])
		}
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	header := ros.Header{Seq: seq, Stamp: ros.NewTime(time.Now()), FrameID: e.cfg.Frame}
	entropy := belief.Entropy()
	cov := spatialmath.NewDiagonalCovariance(sigma[0]*sigma[0], sigma[1]*sigma[1], 0, 0, 0, sigma[2]*sigma[2])
	if err := e.posePub.Publish(ctx, ros.PoseWithCovarianceStamped{
		Header:  header,
		Pose:    ros.PoseWithCovariance{Pose: planarPose(mean[0], mean[1], mean[2]), Covariance: cov.Array()},
		Entropy: &entropy,
	}); err != nil {
		return err
	}
	return e.particlePub.Publish(ctx, ros.PoseArray{Header: header, Poses: particles})
}

// Start publishes every interval until Close.
func (e *Estimator) Start(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.workers != nil {
		return
	}
	e.workers = utils.NewStoppableWorkers()
	e.workers.AddPeriodic(interval, func(ctx context.Context) {
		if err := e.Publish(ctx); err != nil && ctx.Err() == nil {
			e.logger.CDebugw(ctx, "estimate not published", "topic", ros.TopicAmclPose, "error", err)
		}
	})
}

// Close stops publishing and detaches from the bus.
func (e *Estimator) Close() error {
	e.mu.Lock()
	workers := e.workers
	e.workers = nil
	e.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	for _, unsub := range e.unsub {
		unsub()
	}
	return nil
}

func planarPose(x, y, theta float64) ros.Pose {
	q := spatialmath.YawToQuaternion(theta)
	return ros.Pose{
		Position:    ros.Vector3{X: x, Y: y},
		Orientation: ros.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

func wrap(theta float64) float64 {
	return math.Atan2(math.Sin(theta), math.Cos(theta))
}
