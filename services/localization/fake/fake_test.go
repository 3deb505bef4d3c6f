package fake

import (
	"context"
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
)

func truth(x, y float64) ros.ModelStates {
	return ros.ModelStates{
		Name: []string{"turtlebot3"},
		Pose: []ros.Pose{{Position: ros.Vector3{X: x, Y: y}, Orientation: ros.Quaternion{W: 1}}},
	}
}

func TestEstimatorConverges(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	bus := ros.NewMemoryBus(logger)
	defer bus.Close()

	est := NewEstimator(bus, Config{Seed: 7, Particles: 10}, logger)
	defer est.Close()

	var estimates []ros.PoseWithCovarianceStamped
	var clouds []ros.PoseArray
	defer ros.Subscribe(bus, ros.TopicAmclPose, func(m ros.PoseWithCovarianceStamped) { estimates = append(estimates, m) })()
	defer ros.Subscribe(bus, ros.TopicParticleCloud, func(m ros.PoseArray) { clouds = append(clouds, m) })()

	truths := bus.Publisher(ros.TopicModelStates)
	test.That(t, truths.Publish(ctx, truth(0, 0)), test.ShouldBeNil)
	test.That(t, est.Publish(ctx), test.ShouldBeNil)
	test.That(t, len(estimates), test.ShouldEqual, 1)
	test.That(t, len(clouds), test.ShouldEqual, 1)
	test.That(t, len(clouds[0].Poses), test.ShouldEqual, 10)
	test.That(t, estimates[0].Entropy, test.ShouldNotBeNil)
	initialEntropy := *estimates[0].Entropy

	// Drive three meters in small steps.
	for i := 1; i <= 30; i++ {
		test.That(t, truths.Publish(ctx, truth(float64(i)*0.1, 0)), test.ShouldBeNil)
	}
	test.That(t, est.Publish(ctx), test.ShouldBeNil)
	last := estimates[len(estimates)-1]
	test.That(t, *last.Entropy, test.ShouldBeLessThan, initialEntropy)
	test.That(t, *last.Entropy, test.ShouldBeLessThan, -1.5)
	test.That(t, est.Sigma(), test.ShouldResemble, [3]float64{0.02, 0.02, 0.03})
	test.That(t, last.Pose.Pose.Position.X, test.ShouldAlmostEqual, 3, 0.01)

	// Global localization forgets.
	_, err := bus.Call(ctx, ros.ServiceGlobalLocal, ros.Empty{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Sigma()[2], test.ShouldEqual, math.Pi)
}

func TestEstimatorInitialPoseAndParameters(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	bus := ros.NewMemoryBus(logger)
	defer bus.Close()

	est := NewEstimator(bus, Config{}, logger)
	defer est.Close()

	cov := make([]float64, 36)
	cov[0], cov[7], cov[35] = 0.25, 0.25, 0.01
	test.That(t, bus.Publisher(ros.TopicInitialPose).Publish(ctx, ros.PoseWithCovarianceStamped{
		Pose: ros.PoseWithCovariance{
			Pose:       ros.Pose{Position: ros.Vector3{X: 1}, Orientation: ros.Quaternion{W: 1}},
			Covariance: cov,
		},
	}), test.ShouldBeNil)
	sigma := est.Sigma()
	test.That(t, sigma[0], test.ShouldAlmostEqual, 0.5)
	test.That(t, sigma[2], test.ShouldAlmostEqual, 0.1)

	_, err := bus.Call(ctx, ros.ServiceAmclSetParam, ros.SetParameters{Parameters: map[string]interface{}{"max_particles": 20000}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Parameters()["max_particles"], test.ShouldEqual, 20000)
}
