package sandbox

import (
	"context"
	"fmt"
	"time"
)

// IsolationMode selects the sandboxing strategy for one request.
type IsolationMode string

const (
	// IsolationProcess runs the function in a separate OS process.
	IsolationProcess IsolationMode = "process"
	// IsolationNone runs the function in an in-process isolate.
	IsolationNone IsolationMode = "none"
)

// Request is one validated execution request. It is immutable once accepted
// and consumed exactly once by the engine.
type Request struct {
	Script    string         // inline source or http(s) URL reference
	Function  string         // exported function to invoke
	Payload   map[string]any // passed unchanged into the function
	Timeout   time.Duration  // 0 means the engine default
	Isolation IsolationMode  // empty means IsolationProcess
}

// LogEntry is one captured console call.
type LogEntry struct {
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Level     string `json:"level"`     // log, info, warn, error
	Message   string `json:"message"`
}

// ErrorKind tags the failure taxonomy.
type ErrorKind string

const (
	KindTimeout ErrorKind = "TIMEOUT"
	KindRuntime ErrorKind = "RUNTIME_ERROR"
	KindMemory  ErrorKind = "MEMORY_ERROR"
	KindProcess ErrorKind = "PROCESS_ERROR"
	KindUnknown ErrorKind = "UNKNOWN"
)

// CodeMissingExport marks the structured code attached when the requested
// function is absent or not callable.
const CodeMissingExport = "FUNCTION_NOT_FOUND"

// Error describes one failed execution.
type Error struct {
	Kind    ErrorKind
	Message string
	Stack   string     // optional
	Code    string     // optional machine-readable code
	Logs    []LogEntry // output captured before the failure
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Outcome is the terminal result of one execution. Failure is nil on
// success; on failure Result is nil and Logs mirrors Failure.Logs.
type Outcome struct {
	Result  any
	Logs    []LogEntry
	Failure *Error
}

// Success reports whether the outcome carries a result.
func (o *Outcome) Success() bool { return o.Failure == nil }

// Report is the single message a sandbox handle delivers when the
// invocation finishes on its own.
type Report struct {
	Result any
	Logs   []LogEntry
	Err    *Error
}

// Handle is an opaque capability over one isolated execution context. It is
// owned by the runner that created it; the engine only ever waits on Done,
// kills, and releases.
type Handle interface {
	// Done delivers exactly one report. The channel is buffered, so the
	// sandbox never blocks on a caller that already gave up.
	Done() <-chan *Report

	// Kill forcibly terminates the execution context. Non-blocking and
	// idempotent.
	Kill()

	// Release returns the context to its runner. A failed release destroys
	// the context instead of recycling it. Idempotent.
	Release(failed bool)
}

// Runner launches sandboxed invocations for one isolation mode.
type Runner interface {
	Start(ctx context.Context, req *Request) (Handle, error)
}
