package modelserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackzampolin/invoicex/internal/providers"
)

// DefaultPollInterval is the delay between readiness probes.
const DefaultPollInterval = time.Second

// WaitReady polls checker until it succeeds, ctx is done or timeout elapses.
func WaitReady(ctx context.Context, checker providers.HealthChecker, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := retry.Do(
		func() error {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return checker.HealthCheck(probeCtx)
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("model not ready after %s: %w", timeout, err)
	}
	return nil
}

// Readiness tracks whether the model endpoint has answered a health probe.
// The zero value is not ready.
type Readiness struct {
	ready atomic.Bool
}

// Ready reports whether the model is loaded.
func (r *Readiness) Ready() bool {
	return r.ready.Load()
}

// Set marks the model as loaded or not.
func (r *Readiness) Set(ready bool) {
	r.ready.Store(ready)
}

// Watch runs WaitReady and flips the flag on success. It blocks; run it in
// a goroutine to keep the caller responsive.
func (r *Readiness) Watch(ctx context.Context, checker providers.HealthChecker, timeout, interval time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	if err := WaitReady(ctx, checker, timeout, interval); err != nil {
		logger.Error("model endpoint never became ready", "error", err)
		return err
	}
	r.Set(true)
	logger.Info("model ready", "wait", time.Since(start))
	return nil
}
