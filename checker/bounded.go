package checker

import (
	"context"
	"time"

	"github.com/use-agent/smokecheck/engine"
)

// boundedEngine caps every fetch of the wrapped engine at timeout.
type boundedEngine struct {
	engine.Engine
	timeout time.Duration
}

func (b *boundedEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	if b.timeout <= 0 {
		return b.Engine.Fetch(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Engine.Fetch(ctx, req)
}
