package ros

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/turtlelab/localize/logging"
)

func TestTopicKey(t *testing.T) {
	test.That(t, TopicKey("/scan"), test.ShouldEqual, "scan")
	test.That(t, TopicKey("/gazebo/model_states"), test.ShouldEqual, "gazebo_model_states")
	test.That(t, TopicKey("Camera/Depth"), test.ShouldEqual, "camera_depth")
}

func TestRangesJSON(t *testing.T) {
	var r Ranges
	test.That(t, json.Unmarshal([]byte(`[0.5, null, "inf", "-Infinity", "nan", 2]`), &r), test.ShouldBeNil)
	test.That(t, len(r), test.ShouldEqual, 6)
	test.That(t, r[0], test.ShouldEqual, 0.5)
	test.That(t, math.IsInf(r[1], 1), test.ShouldBeTrue)
	test.That(t, math.IsInf(r[2], 1), test.ShouldBeTrue)
	test.That(t, math.IsInf(r[3], -1), test.ShouldBeTrue)
	test.That(t, math.IsNaN(r[4]), test.ShouldBeTrue)
	test.That(t, r[5], test.ShouldEqual, 2.)

	test.That(t, json.Unmarshal([]byte(`["far"]`), &r), test.ShouldNotBeNil)

	out, err := json.Marshal(Ranges{1, math.Inf(1)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `[1,"inf"]`)
}

func TestDecodeRecord(t *testing.T) {
	line := []byte(`{"meta": {"secs":12,"nsecs":500}, "data":{"header":{"seq":3,"stamp":{"secs":12,"nsecs":500},` +
		`"frame_id":"base_scan"},"angle_min":0,"angle_increment":0.0175,"ranges":[+Inf,0.3,NaN]}}` + "\n")
	rec, err := DecodeRecord(TopicScan, line)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rec.Topic, test.ShouldEqual, TopicScan)
	test.That(t, rec.Stamp, test.ShouldEqual, time.Unix(12, 500))

	scan, ok := rec.Msg.(LaserScan)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, scan.Header.FrameID, test.ShouldEqual, "base_scan")
	test.That(t, len(scan.Ranges), test.ShouldEqual, 3)
	test.That(t, math.IsInf(scan.Ranges[0], 1), test.ShouldBeTrue)
	test.That(t, scan.Ranges[1], test.ShouldEqual, 0.3)

	_, err = DecodeRecord("/unknown", line)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = DecodeRecord(TopicScan, []byte("{"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReplay(t *testing.T) {
	bus := NewMemoryBus(logging.NewTestLogger(t))
	var order []string
	Subscribe(bus, TopicOdom, func(Odometry) { order = append(order, "odom") })
	Subscribe(bus, TopicScan, func(LaserScan) { order = append(order, "scan") })

	start := time.Unix(100, 0)
	records := []Record{
		{Topic: TopicOdom, Stamp: start, Msg: Odometry{}},
		{Topic: TopicScan, Stamp: start.Add(10 * time.Millisecond), Msg: LaserScan{}},
		{Topic: TopicOdom, Stamp: start.Add(20 * time.Millisecond), Msg: Odometry{}},
	}
	test.That(t, Replay(context.Background(), bus, records, 0, logging.NewTestLogger(t)), test.ShouldBeNil)
	test.That(t, order, test.ShouldResemble, []string{"odom", "scan", "odom"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Replay(ctx, bus, records, 1, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestModelStatesFind(t *testing.T) {
	states := ModelStates{
		Name: []string{"ground_plane", "turtlebot3"},
		Pose: []Pose{{}, {Position: Vector3{X: 1, Y: 2}}},
	}
	state, ok := states.Find("turtlebot3")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, state.Pose.Position.Y, test.ShouldEqual, 2.)
	_, ok = states.Find("burger")
	test.That(t, ok, test.ShouldBeFalse)
}
