package robot

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/turtlelab/localize/config"
	"github.com/turtlelab/localize/referenceframe"
	"github.com/turtlelab/localize/ros"
	"github.com/turtlelab/localize/spatialmath"
	"github.com/turtlelab/localize/utils"
)

// NewFrameSystem builds the frame tree map -> odom -> base -> mounts. The map -> odom and
// odom -> base edges start at identity and are updated as estimates and odometry arrive.
func NewFrameSystem(cfg config.RobotConfig) (referenceframe.FrameSystem, error) {
	fs := referenceframe.NewEmptyFrameSystem(cfg.ModelName)
	if err := fs.AddFrame(cfg.OdomFrame, referenceframe.World, spatialmath.NewZeroPose()); err != nil {
		return nil, err
	}
	if err := fs.AddFrame(cfg.BaseFrame, cfg.OdomFrame, spatialmath.NewZeroPose()); err != nil {
		return nil, err
	}
	for _, mount := range cfg.Mounts {
		if err := fs.AddFrame(mount.Name, mount.Parent, mountPose(mount)); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func mountPose(mount config.FrameMount) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: mount.X, Y: mount.Y, Z: mount.Z},
		&spatialmath.EulerAngles{Yaw: mount.Yaw},
	)
}

// FrameTable renders each configured frame with its parent and mounting offset.
func FrameTable(cfg config.RobotConfig) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Parent", "Translation", "Yaw"})
	t.AppendRow(table.Row{"0", referenceframe.World, "", "", ""})
	t.AppendRow(table.Row{"1", cfg.OdomFrame, referenceframe.World, "dynamic", ""})
	t.AppendRow(table.Row{"2", cfg.BaseFrame, cfg.OdomFrame, "dynamic", ""})
	for i, mount := range cfg.Mounts {
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", i+3),
			mount.Name,
			mount.Parent,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", mount.X, mount.Y, mount.Z),
			fmt.Sprintf("%.1f", utils.RadToDeg(mount.Yaw)),
		})
	}
	return t.Render()
}

// PoseFromROS converts a pose message to a Pose.
func PoseFromROS(p ros.Pose) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
		spatialmath.NewQuaternion(p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W),
	)
}

// frameUpdater keeps the dynamic edges of the frame tree current.
type frameUpdater struct {
	fs        referenceframe.FrameSystem
	odomFrame string
	baseFrame string
	state     SensorState
}

// onOdometry sets odom -> base from the odometry pose.
func (fu *frameUpdater) onOdometry(msg ros.Odometry) error {
	return fu.fs.SetPose(fu.baseFrame, fu.odomFrame, PoseFromROS(msg.Pose.Pose))
}

// onEstimate sets map -> odom so that map -> base equals the estimate given the latest odometry.
func (fu *frameUpdater) onEstimate(msg ros.PoseWithCovarianceStamped) error {
	mapToBase := PoseFromROS(msg.Pose.Pose)
	odomToBase := spatialmath.NewZeroPose()
	if odom, ok := fu.state.Odometry(); ok {
		odomToBase = PoseFromROS(odom.Pose.Pose)
	}
	mapToOdom := spatialmath.Compose(mapToBase, spatialmath.PoseInverse(odomToBase))
	return fu.fs.SetPose(fu.odomFrame, referenceframe.World, mapToOdom)
}
