package ros

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Meta is the bag record time gobag prefixes each message with.
type Meta struct {
	Secs  int `json:"secs"`
	Nsecs int `json:"nsecs"`
}

// Time is a ROS timestamp.
type Time struct {
	Secs  int `json:"secs"`
	Nsecs int `json:"nsecs"`
}

// NewTime converts t to a ROS timestamp.
func NewTime(t time.Time) Time {
	return Time{Secs: int(t.Unix()), Nsecs: t.Nanosecond()}
}

// Time returns the timestamp as a time.Time.
func (t Time) Time() time.Time {
	return time.Unix(int64(t.Secs), int64(t.Nsecs))
}

// Header is the std_msgs/Header carried by stamped messages.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is a geometry_msgs/Vector3, also used for Point.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a geometry_msgs/Pose.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseWithCovariance is a pose with its row-major 6x6 covariance.
type PoseWithCovariance struct {
	Pose       Pose      `json:"pose"`
	Covariance []float64 `json:"covariance"`
}

// Twist is a geometry_msgs/Twist, the velocity command message.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// TwistWithCovariance is a twist with its row-major 6x6 covariance.
type TwistWithCovariance struct {
	Twist      Twist     `json:"twist"`
	Covariance []float64 `json:"covariance"`
}

// Ranges are laser ranges. Encoders disagree on how to write non-finite floats, so null,
// "inf", "-inf" and "nan" strings are all accepted. null is read as +Inf (no return).
type Ranges []float64

// UnmarshalJSON decodes ranges tolerating non-finite encodings.
func (r *Ranges) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Ranges, len(raw))
	for i, v := range raw {
		f, err := parseFloat(v)
		if err != nil {
			return errors.Wrapf(err, "range %d", i)
		}
		out[i] = f
	}
	*r = out
	return nil
}

// MarshalJSON encodes non-finite ranges as strings so the output stays valid JSON.
func (r Ranges) MarshalJSON() ([]byte, error) {
	raw := make([]interface{}, len(r))
	for i, f := range r {
		switch {
		case math.IsInf(f, 1):
			raw[i] = "inf"
		case math.IsInf(f, -1):
			raw[i] = "-inf"
		case math.IsNaN(f):
			raw[i] = "nan"
		default:
			raw[i] = f
		}
	}
	return json.Marshal(raw)
}

func parseFloat(v json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, nil
	}
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, err
	}
	if s == nil {
		return math.Inf(1), nil
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return 0, errors.Errorf("not a float: %q", *s)
}

// LaserScan is a sensor_msgs/LaserScan.
type LaserScan struct {
	Header         Header    `json:"header"`
	AngleMin       float64   `json:"angle_min"`
	AngleMax       float64   `json:"angle_max"`
	AngleIncrement float64   `json:"angle_increment"`
	TimeIncrement  float64   `json:"time_increment"`
	ScanTime       float64   `json:"scan_time"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         Ranges    `json:"ranges"`
	Intensities    []float64 `json:"intensities"`
}

// Odometry is a nav_msgs/Odometry.
type Odometry struct {
	Header       Header              `json:"header"`
	ChildFrameID string              `json:"child_frame_id"`
	Pose         PoseWithCovariance  `json:"pose"`
	Twist        TwistWithCovariance `json:"twist"`
}

// Imu is a sensor_msgs/Imu.
type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        [9]float64 `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

// PoseWithCovarianceStamped is the estimator output. Entropy is only filled in by estimators
// that report the dispersion of their belief.
type PoseWithCovarianceStamped struct {
	Header  Header             `json:"header"`
	Pose    PoseWithCovariance `json:"pose"`
	Entropy *float64           `json:"entropy,omitempty"`
}

// PoseArray is a geometry_msgs/PoseArray, used for the particle cloud.
type PoseArray struct {
	Header Header `json:"header"`
	Poses  []Pose `json:"poses"`
}

// MapMetaData is a nav_msgs/MapMetaData.
type MapMetaData struct {
	MapLoadTime Time    `json:"map_load_time"`
	Resolution  float64 `json:"resolution"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Origin      Pose    `json:"origin"`
}

// OccupancyGrid is a nav_msgs/OccupancyGrid. Cells hold -1 for unknown or an occupancy
// probability in [0, 100].
type OccupancyGrid struct {
	Header Header      `json:"header"`
	Info   MapMetaData `json:"info"`
	Data   []int8      `json:"data"`
}

// ModelState is a gazebo_msgs/ModelState.
type ModelState struct {
	ModelName      string `json:"model_name"`
	Pose           Pose   `json:"pose"`
	Twist          Twist  `json:"twist"`
	ReferenceFrame string `json:"reference_frame"`
}

// ModelStates is a gazebo_msgs/ModelStates, the ground truth for every simulated model.
type ModelStates struct {
	Name  []string `json:"name"`
	Pose  []Pose   `json:"pose"`
	Twist []Twist  `json:"twist"`
}

// Find returns the state of the named model.
func (ms *ModelStates) Find(name string) (ModelState, bool) {
	for i, n := range ms.Name {
		if n != name || i >= len(ms.Pose) {
			continue
		}
		state := ModelState{ModelName: n, Pose: ms.Pose[i]}
		if i < len(ms.Twist) {
			state.Twist = ms.Twist[i]
		}
		return state, true
	}
	return ModelState{}, false
}

// Empty is std_srvs/Empty.
type Empty struct{}

// SetParameters is a dynamic_reconfigure request; values are keyed by parameter name.
type SetParameters struct {
	Parameters map[string]interface{} `json:"parameters"`
}

// GetMapResponse is the nav_msgs/GetMap response.
type GetMapResponse struct {
	Map OccupancyGrid `json:"map"`
}

// SetModelStateResponse is the gazebo_msgs/SetModelState response.
type SetModelStateResponse struct {
	Success       bool   `json:"success"`
	StatusMessage string `json:"status_message"`
}
