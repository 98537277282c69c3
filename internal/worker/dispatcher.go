package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/dispatch/internal/metrics"
	"basegraph.app/dispatch/internal/session"
)

// ErrStopped is returned by Dispatch once the dispatcher is draining.
var ErrStopped = errors.New("dispatcher stopped")

// Runner executes one agent run. *session.Driver satisfies it.
type Runner interface {
	Run(ctx context.Context, in session.Input) session.Result
}

type Config struct {
	// RunTimeout bounds each run's wall clock. Zero means no bound.
	RunTimeout time.Duration
}

// Dispatcher starts agent runs without waiting for them. Failures and panics
// are logged and dropped; they never reach the caller.
type Dispatcher struct {
	runner  Runner
	metrics *metrics.Metrics
	cfg     Config

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func New(runner Runner, m *metrics.Metrics, cfg Config) *Dispatcher {
	return &Dispatcher{runner: runner, metrics: m, cfg: cfg}
}

// Dispatch starts in on its own goroutine. The run keeps ctx's values but not
// its cancellation, since ctx usually belongs to an HTTP request that is about
// to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, in session.Input) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}

	d.wg.Add(1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		d.runSafe(runCtx, in)
	}()
	return nil
}

func (d *Dispatcher) runSafe(ctx context.Context, in session.Input) {
	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	d.metrics.RunStarted()

	var result session.Result
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in agent run",
				"panic", r,
				"session_id", in.SessionID)
			result = session.Result{Success: false, Error: fmt.Errorf("panic: %v", r)}
		}
		d.metrics.RunFinished(in.Agent.ID, result.Success, result.TokensUsed, time.Since(start))
	}()

	result = d.runner.Run(ctx, in)
	if !result.Success {
		slog.ErrorContext(ctx, "agent run failed",
			"error", result.Error,
			"session_id", in.SessionID,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(ctx, "agent run finished",
		"session_id", in.SessionID,
		"tokens_used", result.TokensUsed,
		"duration_ms", time.Since(start).Milliseconds())
}

// Stop rejects new runs and waits for in-flight ones until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	return d.Wait(ctx)
}

// Wait blocks until all in-flight runs finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for agent runs: %w", ctx.Err())
	}
}
