package ros

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(logging.NewTestLogger(t))
	defer bus.Close()

	var got []Twist
	unsubscribe := Subscribe(bus, TopicCmdVel, func(msg Twist) { got = append(got, msg) })

	pub := bus.Publisher(TopicCmdVel)
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 1)
	test.That(t, pub.Publish(context.Background(), Twist{Linear: Vector3{X: 0.5}}), test.ShouldBeNil)
	test.That(t, pub.Publish(context.Background(), &Twist{Angular: Vector3{Z: 0.3}}), test.ShouldBeNil)
	// Wrong type on the topic is ignored by typed subscribers.
	test.That(t, pub.Publish(context.Background(), Odometry{}), test.ShouldBeNil)

	test.That(t, got, test.ShouldResemble, []Twist{{Linear: Vector3{X: 0.5}}, {Angular: Vector3{Z: 0.3}}})
	test.That(t, bus.Topics(), test.ShouldResemble, []string{TopicCmdVel})

	unsubscribe()
	unsubscribe()
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 0)
	test.That(t, pub.Publish(context.Background(), Twist{}), test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 2)
}

func TestMemoryBusSubscriberPanic(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	bus := NewMemoryBus(logger)

	calls := 0
	bus.Subscribe(TopicScan, func(interface{}) { panic("bad scan") })
	bus.Subscribe(TopicScan, func(interface{}) { calls++ })

	test.That(t, bus.Publisher(TopicScan).Publish(context.Background(), LaserScan{}), test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("subscriber panicked").Len(), test.ShouldEqual, 1)
}

func TestMemoryBusServices(t *testing.T) {
	bus := NewMemoryBus(logging.NewTestLogger(t))

	_, err := bus.Call(context.Background(), ServiceGlobalLocal, Empty{})
	test.That(t, errors.Is(err, ErrServiceUnavailable), test.ShouldBeTrue)

	bus.RegisterService(ServiceGlobalLocal, func(ctx context.Context, req interface{}) (interface{}, error) {
		return Empty{}, nil
	})
	test.That(t, bus.HasService(ServiceGlobalLocal), test.ShouldBeTrue)
	resp, err := bus.Call(context.Background(), ServiceGlobalLocal, Empty{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp, test.ShouldResemble, Empty{})

	bus.RegisterService(ServiceAmclSetParam, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.New("rejected")
	})
	_, err = bus.Call(context.Background(), ServiceAmclSetParam, SetParameters{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, ServiceAmclSetParam)

	test.That(t, bus.Close(), test.ShouldBeNil)
	_, err = bus.Call(context.Background(), ServiceGlobalLocal, Empty{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWaitForMessage(t *testing.T) {
	bus := NewMemoryBus(logging.NewTestLogger(t))
	ctx := context.Background()

	_, err := WaitForMessage[Odometry](ctx, bus, TopicOdom, 10*time.Millisecond)
	test.That(t, errors.Is(err, ErrNoMessage), test.ShouldBeTrue)

	pub := bus.Publisher(TopicOdom)
	go func() {
		for i := 0; i < 100; i++ {
			_ = pub.Publish(ctx, Odometry{ChildFrameID: "base_footprint"})
			time.Sleep(time.Millisecond)
		}
	}()
	odom, err := WaitForMessage[Odometry](ctx, bus, TopicOdom, time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, odom.ChildFrameID, test.ShouldEqual, "base_footprint")
}

func TestWaitForSubscribersAndServices(t *testing.T) {
	bus := NewMemoryBus(logging.NewTestLogger(t))
	ctx := context.Background()
	pub := bus.Publisher(TopicCmdVel)

	err := WaitForSubscribers(ctx, pub, 10*time.Millisecond)
	test.That(t, errors.Is(err, ErrNoSubscribers), test.ShouldBeTrue)
	bus.Subscribe(TopicCmdVel, func(interface{}) {})
	test.That(t, WaitForSubscribers(ctx, pub, 10*time.Millisecond), test.ShouldBeNil)

	err = WaitForService(ctx, bus, ServiceStaticMap, 10*time.Millisecond)
	test.That(t, errors.Is(err, ErrServiceUnavailable), test.ShouldBeTrue)
	bus.RegisterService(ServiceStaticMap, func(context.Context, interface{}) (interface{}, error) {
		return GetMapResponse{}, nil
	})
	test.That(t, WaitForService(ctx, bus, ServiceStaticMap, 10*time.Millisecond), test.ShouldBeNil)
}
