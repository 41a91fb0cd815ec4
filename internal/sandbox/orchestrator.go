package sandbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/my-piper/piper-deno/internal/logging"
	"github.com/my-piper/piper-deno/internal/monitoring"
	"github.com/my-piper/piper-deno/internal/normalize"
)

// Config holds engine-level deadline limits.
type Config struct {
	DefaultTimeout time.Duration // applied when the request carries none
	MaxTimeout     time.Duration // hard cap; larger requests are capped, not rejected
}

// DefaultConfig returns the stock deadline limits.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Second,
		MaxTimeout:     300 * time.Second,
	}
}

// Engine orchestrates sandboxed executions. All invocations run
// concurrently; the engine itself holds no mutable per-request state.
type Engine struct {
	cfg     Config
	process Runner
	isolate Runner
	logger  *logging.Logger
	metrics *monitoring.Metrics // optional
}

// NewEngine wires an engine over the two runner variants.
func NewEngine(cfg Config, process, isolate Runner, logger *logging.Logger, metrics *monitoring.Metrics) *Engine {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = DefaultConfig().MaxTimeout
	}
	return &Engine{
		cfg:     cfg,
		process: process,
		isolate: isolate,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs one request to completion. It never panics and never returns
// nil: every failure, including spawn failures and timeouts, becomes a
// tagged Outcome.
func (e *Engine) Execute(ctx context.Context, req *Request) *Outcome {
	id := uuid.NewString()
	mode := req.Isolation
	if mode == "" {
		mode = IsolationProcess
	}
	deadline := e.effectiveTimeout(req.Timeout)
	start := time.Now()

	runner := e.process
	if mode == IsolationNone {
		runner = e.isolate
	}

	handle, err := runner.Start(ctx, req)
	if err != nil {
		e.logger.Error("sandbox start failed",
			zap.String("request_id", id),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return e.finish(id, mode, start, &Outcome{
			Failure: &Error{Kind: KindProcess, Message: err.Error()},
		})
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var out *Outcome
	select {
	case rep := <-handle.Done():
		if rep.Err != nil {
			handle.Release(true)
			out = &Outcome{Failure: rep.Err, Logs: rep.Err.Logs}
		} else {
			handle.Release(false)
			out = &Outcome{Result: normalize.Value(rep.Result), Logs: rep.Logs}
		}

	case <-timer.C:
		handle.Kill()
		handle.Release(true)
		out = &Outcome{Failure: &Error{Kind: KindTimeout, Message: "Execution timeout"}}

	case <-ctx.Done():
		handle.Kill()
		handle.Release(true)
		out = &Outcome{Failure: &Error{Kind: KindUnknown, Message: ctx.Err().Error()}}
	}

	return e.finish(id, mode, start, out)
}

// effectiveTimeout caps the requested deadline at the configured maximum.
func (e *Engine) effectiveTimeout(requested time.Duration) time.Duration {
	d := requested
	if d <= 0 {
		d = e.cfg.DefaultTimeout
	}
	if d > e.cfg.MaxTimeout {
		d = e.cfg.MaxTimeout
	}
	return d
}

func (e *Engine) finish(id string, mode IsolationMode, start time.Time, out *Outcome) *Outcome {
	elapsed := time.Since(start)

	label := "success"
	if out.Failure != nil {
		label = string(out.Failure.Kind)
	}
	if e.metrics != nil {
		e.metrics.RecordExecution(string(mode), label, elapsed)
	}

	if out.Failure != nil {
		e.logger.Warn("execution failed",
			zap.String("request_id", id),
			zap.String("mode", string(mode)),
			zap.String("kind", string(out.Failure.Kind)),
			zap.String("message", out.Failure.Message),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		e.logger.Info("execution finished",
			zap.String("request_id", id),
			zap.String("mode", string(mode)),
			zap.Int("log_entries", len(out.Logs)),
			zap.Duration("elapsed", elapsed),
		)
	}
	return out
}
