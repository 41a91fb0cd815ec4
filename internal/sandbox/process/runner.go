package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/my-piper/piper-deno/internal/logging"
	"github.com/my-piper/piper-deno/internal/sandbox"
)

// Config defines how workers are spawned.
type Config struct {
	WorkerBin     string // path to the worker bootstrap binary
	MemoryLimitMB int64  // heap ceiling passed to each worker
}

// Runner spawns one worker process per request. Nothing is shared across
// requests.
type Runner struct {
	cfg    Config
	logger *logging.Logger
}

// NewRunner creates a process runner.
func NewRunner(cfg Config, logger *logging.Logger) *Runner {
	if cfg.MemoryLimitMB <= 0 {
		cfg.MemoryLimitMB = 128
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Start spawns a worker, feeds it the request and begins collecting its
// output. The returned handle delivers exactly one report when the process
// exits.
func (r *Runner) Start(ctx context.Context, req *sandbox.Request) (sandbox.Handle, error) {
	payload, err := sonic.Marshal(Request{
		Script:        req.Script,
		Function:      req.Function,
		Payload:       req.Payload,
		MemoryLimitMB: r.cfg.MemoryLimitMB,
	})
	if err != nil {
		return nil, fmt.Errorf("encode worker request: %w", err)
	}

	cmd := exec.Command(r.cfg.WorkerBin)
	cmd.Env = append(os.Environ(), fmt.Sprintf("GOMEMLIMIT=%dMiB", r.cfg.MemoryLimitMB))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open worker stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn worker: %w", err)
	}

	r.logger.Debug("worker spawned",
		zap.Int("pid", cmd.Process.Pid),
		zap.Int64("memory_limit_mb", r.cfg.MemoryLimitMB),
	)

	h := &handle{
		cmd:  cmd,
		done: make(chan *sandbox.Report, 1),
	}
	go func() {
		// A worker that never reads its stdin must not wedge the writer.
		_, _ = stdin.Write(payload)
		_ = stdin.Close()

		err := cmd.Wait()
		h.done <- buildReport(exitCode(err), stdout.Bytes(), stderr.Bytes())
	}()
	return h, nil
}

// handle owns one child process.
type handle struct {
	cmd    *exec.Cmd
	done   chan *sandbox.Report
	killed atomic.Bool
}

func (h *handle) Done() <-chan *sandbox.Report { return h.done }

// Kill delivers SIGKILL. Idempotent and non-blocking; the Wait goroutine
// reaps the process and reports.
func (h *handle) Kill() {
	if h.killed.CompareAndSwap(false, true) {
		if h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
	}
}

// Release is a no-op: the process is gone once reaped, nothing is pooled.
func (h *handle) Release(failed bool) {}

// exitCode flattens cmd.Wait's error into a code: 0 for success, the
// process's code for a regular exit, -1 for a signal death or a wait
// failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	return -1
}

// buildReport maps the worker's exit into an outcome report.
func buildReport(code int, stdout, stderr []byte) *sandbox.Report {
	if code != 0 {
		if code == ExitOOM || oomSignature(stderr) {
			return failure(&sandbox.Error{
				Kind:    sandbox.KindMemory,
				Message: "Sandbox out of memory",
				Stack:   strings.TrimSpace(string(stderr)),
			})
		}
		return failure(&sandbox.Error{
			Kind:    sandbox.KindProcess,
			Message: fmt.Sprintf("Worker exited with code %d", code),
			Stack:   strings.TrimSpace(string(stderr)),
		})
	}

	var resp Response
	if err := sonic.Unmarshal(stdout, &resp); err != nil {
		return failure(&sandbox.Error{
			Kind:    sandbox.KindProcess,
			Message: "Failed to parse output",
		})
	}

	switch resp.Type {
	case "success":
		return &sandbox.Report{Result: resp.Result, Logs: resp.Logs}
	case "error":
		return failure(&sandbox.Error{
			Kind:    sandbox.KindRuntime,
			Message: resp.Message,
			Stack:   resp.Stack,
			Code:    resp.Code,
			Logs:    resp.Logs,
		})
	default:
		return failure(&sandbox.Error{
			Kind:    sandbox.KindProcess,
			Message: "Failed to parse output",
		})
	}
}

func failure(err *sandbox.Error) *sandbox.Report {
	return &sandbox.Report{Err: err}
}

// oomSignature is the fallback for runtime-level aborts the worker's own
// watchdog cannot intercept.
func oomSignature(stderr []byte) bool {
	s := strings.ToLower(string(stderr))
	for _, sig := range []string{
		"out of memory",
		"cannot allocate memory",
		"memory limit exceeded",
		"oom",
	} {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
