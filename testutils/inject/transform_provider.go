package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/turtlelab/localize/referenceframe"
	"github.com/turtlelab/localize/spatialmath"
)

// TransformProvider is an injected TransformProvider.
type TransformProvider struct {
	referenceframe.TransformProvider
	TransformFunc      func(ctx context.Context, src, dst string) (spatialmath.Pose, error)
	TransformPointFunc func(ctx context.Context, pt r3.Vector, src, dst string) (r3.Vector, error)
}

// Transform calls the injected Transform or the real version.
func (tp *TransformProvider) Transform(ctx context.Context, src, dst string) (spatialmath.Pose, error) {
	if tp.TransformFunc == nil {
		return tp.TransformProvider.Transform(ctx, src, dst)
	}
	return tp.TransformFunc(ctx, src, dst)
}

// TransformPoint calls the injected TransformPoint or the real version.
func (tp *TransformProvider) TransformPoint(ctx context.Context, pt r3.Vector, src, dst string) (r3.Vector, error) {
	if tp.TransformPointFunc == nil {
		return tp.TransformProvider.TransformPoint(ctx, pt, src, dst)
	}
	return tp.TransformPointFunc(ctx, pt, src, dst)
}
