// Package inject provides injectable fakes of the robot's components and services for tests.
package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/turtlelab/localize/components/base"
)

// Base is an injected base.
type Base struct {
	base.Base
	SetVelocityFunc func(ctx context.Context, linear, angular r3.Vector) error
	StopFunc        func(ctx context.Context) error
}

// SetVelocity calls the injected SetVelocity or the real version.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector) error {
	if b.SetVelocityFunc == nil {
		return b.Base.SetVelocity(ctx, linear, angular)
	}
	return b.SetVelocityFunc(ctx, linear, angular)
}

// Stop calls the injected Stop or the real version.
func (b *Base) Stop(ctx context.Context) error {
	if b.StopFunc == nil {
		return b.Base.Stop(ctx)
	}
	return b.StopFunc(ctx)
}
