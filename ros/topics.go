package ros

import (
	"reflect"
	"strings"
)

// Topics and services of the localization task.
const (
	TopicScan           = "/scan"
	TopicOdom           = "/odom"
	TopicImu            = "/imu"
	TopicAmclPose       = "/amcl_pose"
	TopicParticleCloud  = "/particlecloud"
	TopicModelStates    = "/gazebo/model_states"
	TopicMap            = "/map"
	TopicCmdVel         = "/cmd_vel"
	TopicInitialPose    = "/initialpose"
	TopicSetModelState  = "/gazebo/set_model_state"
	ServiceStaticMap    = "/static_map"
	ServiceGlobalLocal  = "/global_localization"
	ServiceAmclSetParam = "/amcl/set_parameters"
)

// TopicTypes maps each known topic to the message type carried on it. Replay uses it to
// decode bag records.
var TopicTypes = map[string]reflect.Type{
	TopicScan:          reflect.TypeOf(LaserScan{}),
	TopicOdom:          reflect.TypeOf(Odometry{}),
	TopicImu:           reflect.TypeOf(Imu{}),
	TopicAmclPose:      reflect.TypeOf(PoseWithCovarianceStamped{}),
	TopicParticleCloud: reflect.TypeOf(PoseArray{}),
	TopicModelStates:   reflect.TypeOf(ModelStates{}),
	TopicMap:           reflect.TypeOf(OccupancyGrid{}),
	TopicCmdVel:        reflect.TypeOf(Twist{}),
	TopicInitialPose:   reflect.TypeOf(PoseWithCovarianceStamped{}),
	TopicSetModelState: reflect.TypeOf(ModelState{}),
}

// TopicKey returns the key gobag files a topic's JSON under: lower case, no leading slash,
// remaining slashes replaced by underscores.
func TopicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}
