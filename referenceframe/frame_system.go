// Package referenceframe keeps the tree of named coordinate frames a robot's sensors are
// mounted in and translates points between them. Edges may be updated at any time, e.g. the
// odom to base edge on every odometry message.
package referenceframe

import (
	"fmt"
	"sort"
	"sync"

	spatial "github.com/turtlelab/localize/spatialmath"
)

// World is the string "map", the root every frame is ultimately expressed in.
const World = "map"

// FrameSystem represents a tree of frames connected to each other, allowing for transformations between any two frames.
type FrameSystem interface {
	// Name returns the name of this FrameSystem
	Name() string

	// FrameNames returns the names of all of the frames that exist in the FrameSystem
	FrameNames() []string

	// AddFrame inserts a frame as a child of parent, offset by pose.
	AddFrame(name, parent string, pose spatial.Pose) error

	// SetPose replaces the pose of an existing frame relative to its parent. A frame that does
	// not exist yet is added under parent.
	SetPose(name, parent string, pose spatial.Pose) error

	// RemoveFrame removes the given frame and all of its descendents.
	RemoveFrame(name string)

	// Parent returns the name of the parent of the given frame.
	Parent(name string) (string, error)

	// TracebackFrame traces the parentage of the given frame up to the world, and returns the full list of frames in between.
	// The list will include both the query frame and the world frame.
	TracebackFrame(name string) ([]string, error)

	// Transform returns the pose of src expressed in dst.
	Transform(src, dst string) (spatial.Pose, error)
}

// simpleFrameSystem implements FrameSystem. It is a simple tree graph guarded by a mutex so
// bus callbacks can update edges while the control loop reads them.
type simpleFrameSystem struct {
	name    string
	mu      sync.RWMutex
	poses   map[string]spatial.Pose
	parents map[string]string
}

// NewEmptyFrameSystem creates a frame system holding only the world frame.
func NewEmptyFrameSystem(name string) FrameSystem {
	return &simpleFrameSystem{name: name, poses: map[string]spatial.Pose{}, parents: map[string]string{}}
}

// Name returns the name of the simpleFrameSystem.
func (sfs *simpleFrameSystem) Name() string {
	return sfs.name
}

// frameExists is a helper function to see if a frame with a given name already exists in the system.
func (sfs *simpleFrameSystem) frameExists(name string) bool {
	if name == World {
		return true
	}
	_, ok := sfs.poses[name]
	return ok
}

// FrameNames returns the sorted list of frame names registered in the frame system.
func (sfs *simpleFrameSystem) FrameNames() []string {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	frameNames := make([]string, 0, len(sfs.poses))
	for k := range sfs.poses {
		frameNames = append(frameNames, k)
	}
	sort.Strings(frameNames)
	return frameNames
}

func (sfs *simpleFrameSystem) checkName(name, parent string) error {
	if parent == "" {
		return NewParentFrameMissingError()
	}
	if !sfs.frameExists(parent) {
		return fmt.Errorf("parent frame with name %q not in frame system", parent)
	}
	if sfs.frameExists(name) {
		return NewFrameAlreadyExistsError(name)
	}
	return nil
}

// AddFrame sets a new frame into the system.
func (sfs *simpleFrameSystem) AddFrame(name, parent string, pose spatial.Pose) error {
	sfs.mu.Lock()
	defer sfs.mu.Unlock()
	if err := sfs.checkName(name, parent); err != nil {
		return err
	}
	if pose == nil {
		pose = spatial.NewZeroPose()
	}
	sfs.poses[name] = pose
	sfs.parents[name] = parent
	return nil
}

// SetPose updates the edge from name to its parent. Reparenting is not allowed.
func (sfs *simpleFrameSystem) SetPose(name, parent string, pose spatial.Pose) error {
	sfs.mu.Lock()
	if name != World && !sfs.frameExists(name) {
		sfs.mu.Unlock()
		return sfs.AddFrame(name, parent, pose)
	}
	defer sfs.mu.Unlock()
	if name == World {
		return fmt.Errorf("cannot move the %q frame", World)
	}
	if current := sfs.parents[name]; current != parent {
		return fmt.Errorf("frame %q has parent %q, not %q", name, current, parent)
	}
	sfs.poses[name] = pose
	return nil
}

// RemoveFrame will delete the given frame and all descendents from the frame system if it exists.
func (sfs *simpleFrameSystem) RemoveFrame(name string) {
	sfs.mu.Lock()
	defer sfs.mu.Unlock()
	sfs.removeFrame(name)
}

func (sfs *simpleFrameSystem) removeFrame(name string) {
	delete(sfs.poses, name)
	delete(sfs.parents, name)
	for child, parent := range sfs.parents {
		if parent == name {
			sfs.removeFrame(child)
		}
	}
}

// Parent returns the parent frame of the input frame. World has no parent.
func (sfs *simpleFrameSystem) Parent(name string) (string, error) {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	if !sfs.frameExists(name) {
		return "", NewFrameMissingError(name)
	}
	if name == World {
		return "", fmt.Errorf("the %q frame has no parent", World)
	}
	return sfs.parents[name], nil
}

// TracebackFrame traces the parentage of the given frame up to the world.
func (sfs *simpleFrameSystem) TracebackFrame(name string) ([]string, error) {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	return sfs.traceback(name)
}

func (sfs *simpleFrameSystem) traceback(name string) ([]string, error) {
	if !sfs.frameExists(name) {
		return nil, NewFrameMissingError(name)
	}
	if name == World {
		return []string{World}, nil
	}
	parents, err := sfs.traceback(sfs.parents[name])
	if err != nil {
		return nil, err
	}
	return append([]string{name}, parents...), nil
}

// Transform returns the pose of the src frame's origin expressed in dst.
func (sfs *simpleFrameSystem) Transform(src, dst string) (spatial.Pose, error) {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	if src == dst {
		return spatial.NewZeroPose(), nil
	}
	srcToWorld, err := sfs.composeTransforms(src)
	if err != nil {
		return nil, err
	}
	dstToWorld, err := sfs.composeTransforms(dst)
	if err != nil {
		return nil, err
	}
	// transform from source to world, world to target
	return spatial.Compose(spatial.PoseInverse(dstToWorld), srcToWorld), nil
}

// compose the poses from the input frame to the world frame.
func (sfs *simpleFrameSystem) composeTransforms(name string) (spatial.Pose, error) {
	if !sfs.frameExists(name) {
		return nil, NewFrameMissingError(name)
	}
	q := spatial.NewZeroPose()
	for name != World {
		// Each pose gives FROM frame TO parent. Add new transforms to the left.
		q = spatial.Compose(sfs.poses[name], q)
		name = sfs.parents[name]
	}
	return q, nil
}
