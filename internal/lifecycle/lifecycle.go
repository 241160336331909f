package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. /health reports shutting-down while it is true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Step is one stage of graceful shutdown.
type Step struct {
	Name    string
	Timeout time.Duration // 0 runs under the parent context only
	Run     func(ctx context.Context) error
}

// Shutdown sets the shutdown flag and runs steps in order. A failing step is logged
// and the remaining steps still run; the returned error joins every failure.
func Shutdown(ctx context.Context, logger *zap.Logger, steps ...Step) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	SetShuttingDown(true)

	var errs []error
	for _, step := range steps {
		start := time.Now()
		if err := runStep(ctx, step); err != nil {
			logger.Error("shutdown step failed", zap.String("step", step.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		logger.Info("shutdown step complete", zap.String("step", step.Name), zap.Duration("elapsed", time.Since(start)))
	}
	return errors.Join(errs...)
}

func runStep(ctx context.Context, step Step) error {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	return step.Run(ctx)
}
