package referenceframe

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	spatial "github.com/turtlelab/localize/spatialmath"
)

const transformPollInterval = 10 * time.Millisecond

// TransformProvider translates points between named frames.
type TransformProvider interface {
	// Transform returns the pose of src expressed in dst. It waits like TransformPoint.
	Transform(ctx context.Context, src, dst string) (spatial.Pose, error)
	// TransformPoint expresses pt, given in src, in dst. It waits a bounded time for the frames
	// to become linked and returns ErrTransformUnavailable when they never do.
	TransformPoint(ctx context.Context, pt r3.Vector, src, dst string) (r3.Vector, error)
}

// waitingProvider answers transform lookups from a FrameSystem that is being filled in
// concurrently, retrying until wait elapses.
type waitingProvider struct {
	fs   FrameSystem
	wait time.Duration
}

// NewTransformProvider returns a TransformProvider over fs that waits up to wait for an
// unknown frame to appear.
func NewTransformProvider(fs FrameSystem, wait time.Duration) TransformProvider {
	return &waitingProvider{fs: fs, wait: wait}
}

func (wp *waitingProvider) Transform(ctx context.Context, src, dst string) (spatial.Pose, error) {
	return wp.lookup(ctx, src, dst)
}

func (wp *waitingProvider) TransformPoint(ctx context.Context, pt r3.Vector, src, dst string) (r3.Vector, error) {
	pose, err := wp.lookup(ctx, src, dst)
	if err != nil {
		return r3.Vector{}, err
	}
	return spatial.TransformPoint(pose, pt), nil
}

func (wp *waitingProvider) lookup(ctx context.Context, src, dst string) (spatial.Pose, error) {
	deadline := time.Now().Add(wp.wait)
	for {
		pose, err := wp.fs.Transform(src, dst)
		if err == nil {
			return pose, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errors.Wrapf(ErrTransformUnavailable, "%s to %s: %v", src, dst, err)
		}
		if !goutils.SelectContextOrWait(ctx, transformPollInterval) {
			return nil, errors.Wrapf(ErrTransformUnavailable, "%s to %s: %v", src, dst, ctx.Err())
		}
	}
}
