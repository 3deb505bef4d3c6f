package localization

import (
	"context"
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/logging"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
)

func rosPose(x, y, theta float64) ros.Pose {
	q := spatialmath.YawToQuaternion(theta)
	return ros.Pose{
		Position:    ros.Vector3{X: x, Y: y},
		Orientation: ros.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

func estimateMsg(x, y, theta float64, cov []float64, entropy *float64) ros.PoseWithCovarianceStamped {
	return ros.PoseWithCovarianceStamped{
		Header:  ros.Header{FrameID: "map"},
		Pose:    ros.PoseWithCovariance{Pose: rosPose(x, y, theta), Covariance: cov},
		Entropy: entropy,
	}
}

type staticSource struct {
	estimate    *ros.PoseWithCovarianceStamped
	groundTruth *ros.ModelStates
}

func (s staticSource) Estimate() (ros.PoseWithCovarianceStamped, bool) {
	if s.estimate == nil {
		return ros.PoseWithCovarianceStamped{}, false
	}
	return *s.estimate, true
}

func (s staticSource) GroundTruth() (ros.ModelStates, bool) {
	if s.groundTruth == nil {
		return ros.ModelStates{}, false
	}
	return *s.groundTruth, true
}

func TestFuse(t *testing.T) {
	entropy := -2.0
	cov := spatialmath.NewDiagonalCovariance(0.1, 0.2, 0, 0, 0, 0.3).Array()
	p, err := Fuse(estimateMsg(1, 2, math.Pi/2, cov, &entropy))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Frame, test.ShouldEqual, "map")
	test.That(t, p.Position.X, test.ShouldEqual, 1.)
	test.That(t, p.Euler.Yaw, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, p.Covariance.At(5, 5), test.ShouldEqual, 0.3)
	test.That(t, p.Covariance.Array(), test.ShouldResemble, cov)
	test.That(t, p.Entropy, test.ShouldEqual, -2.)

	// No entropy reported means unknown dispersion.
	p, err = Fuse(&ros.PoseWithCovarianceStamped{Pose: ros.PoseWithCovariance{Pose: rosPose(0, 0, 0)}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsInf(p.Entropy, 1), test.ShouldBeTrue)
	test.That(t, p.Covariance, test.ShouldBeNil)

	p, err = Fuse(ros.ModelState{ModelName: "turtlebot3", Pose: rosPose(3, 4, -1), ReferenceFrame: "world"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Covariance, test.ShouldBeNil)
	test.That(t, p.Euler.Yaw, test.ShouldAlmostEqual, -1)
	test.That(t, spatialmath.PoseAlmostCoincident(p.SpatialPose(), spatialmath.NewPlanarPose(3, 4, -1)), test.ShouldBeTrue)

	odom := ros.Odometry{Header: ros.Header{FrameID: "odom"}}
	odom.Pose.Pose = rosPose(0.5, 0, 0)
	p, err = Fuse(odom)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Frame, test.ShouldEqual, "odom")

	for _, nilMsg := range []interface{}{
		(*ros.PoseWithCovarianceStamped)(nil), (*ros.ModelState)(nil), (*ros.Odometry)(nil), nil,
	} {
		_, err = Fuse(nilMsg)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cannot fuse pose")
	}

	_, err = Fuse(ros.Twist{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Fuse(estimateMsg(0, 0, 0, []float64{1, 2, 3}, nil))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEstimateError(t *testing.T) {
	cov := spatialmath.NewDiagonalCovariance(0.1, 0.1, 0, 0, 0, 0.2).Array()
	a, err := Fuse(estimateMsg(1, 2, 0.5, cov, nil))
	test.That(t, err, test.ShouldBeNil)
	b, err := Fuse(estimateMsg(1, 2, 0.5, cov, nil))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, EstimateError(a, b), test.ShouldEqual, 0.)

	// Position 3-4-5 triangle, yaw off by 0.5, covariance against none.
	c := FromModelState(ros.ModelState{Pose: rosPose(4, 6, 0)})
	expected := 25 + 0.25 + 0.1*0.1 + 0.1*0.1 + 0.2*0.2
	test.That(t, EstimateError(a, c), test.ShouldAlmostEqual, expected)
	test.That(t, EstimateError(c, a), test.ShouldAlmostEqual, expected)
}

func TestPoseFuserEvaluate(t *testing.T) {
	logger := logging.NewTestLogger(t)

	f := NewPoseFuser(staticSource{}, "turtlebot3", logger).Evaluate()
	test.That(t, math.IsInf(f.Error, 1), test.ShouldBeTrue)
	test.That(t, math.IsInf(f.Entropy, 1), test.ShouldBeTrue)

	entropy := -3.0
	estimate := estimateMsg(1, 1, 0, nil, &entropy)
	truth := ros.ModelStates{
		Name: []string{"ground_plane", "turtlebot3"},
		Pose: []ros.Pose{rosPose(0, 0, 0), rosPose(1, 1.5, 0)},
	}
	fuser := NewPoseFuser(staticSource{estimate: &estimate, groundTruth: &truth}, "turtlebot3", logger)
	f = fuser.Evaluate()
	test.That(t, f.Error, test.ShouldAlmostEqual, 0.25)
	test.That(t, f.Entropy, test.ShouldEqual, -3.)
	test.That(t, f.GroundTruth.Position.Y, test.ShouldEqual, 1.5)

	missing := NewPoseFuser(staticSource{estimate: &estimate, groundTruth: &truth}, "burger", logger)
	f = missing.Evaluate()
	test.That(t, math.IsInf(f.Error, 1), test.ShouldBeTrue)
	test.That(t, f.Entropy, test.ShouldEqual, -3.)
}

func TestEstimatorReseed(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	bus := ros.NewMemoryBus(logger)
	defer bus.Close()

	cfg := config.Default()
	est := NewEstimator(bus, cfg.Localization, "map", logger)

	// Nothing serves the estimator: every step is attempted and the failures reported.
	err := est.Reseed(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, ros.ServiceAmclSetParam)
	test.That(t, err.Error(), test.ShouldContainSubstring, ros.ServiceGlobalLocal)

	var initial []ros.PoseWithCovarianceStamped
	unsubscribe := ros.Subscribe(bus, ros.TopicInitialPose, func(msg ros.PoseWithCovarianceStamped) {
		initial = append(initial, msg)
	})
	defer unsubscribe()
	var params map[string]interface{}
	bus.RegisterService(ros.ServiceAmclSetParam, func(ctx context.Context, req interface{}) (interface{}, error) {
		params = req.(ros.SetParameters).Parameters
		return ros.Empty{}, nil
	})
	globals := 0
	bus.RegisterService(ros.ServiceGlobalLocal, func(ctx context.Context, req interface{}) (interface{}, error) {
		globals++
		return ros.Empty{}, nil
	})

	test.That(t, est.Reseed(ctx), test.ShouldBeNil)
	test.That(t, len(initial), test.ShouldEqual, 1)
	msg := initial[0]
	test.That(t, msg.Header.FrameID, test.ShouldEqual, "map")
	test.That(t, msg.Pose.Pose.Orientation.W, test.ShouldAlmostEqual, 1)
	test.That(t, msg.Pose.Covariance[0], test.ShouldAlmostEqual, 0.25)
	test.That(t, msg.Pose.Covariance[7], test.ShouldAlmostEqual, 0.25)
	test.That(t, msg.Pose.Covariance[35], test.ShouldAlmostEqual, math.Pow(math.Pi/12, 2))
	test.That(t, params, test.ShouldResemble, map[string]interface{}{"max_particles": 20000})
	test.That(t, globals, test.ShouldEqual, 1)
}
