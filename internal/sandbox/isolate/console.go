package isolate

import (
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/my-piper/piper-deno/internal/sandbox"
)

// Recorder accumulates console output for one invocation, ordered by
// emission time.
type Recorder struct {
	mu      sync.Mutex
	entries []sandbox.LogEntry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append adds one entry stamped with the current time.
func (r *Recorder) Append(level, message string) {
	r.mu.Lock()
	r.entries = append(r.entries, sandbox.LogEntry{
		Timestamp: time.Now().UnixMilli(),
		Level:     level,
		Message:   message,
	})
	r.mu.Unlock()
}

// Entries returns a copy of everything captured so far.
func (r *Recorder) Entries() []sandbox.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sandbox.LogEntry{}, r.entries...)
}

// bridge routes the VM's console levels onto a swappable recorder. The
// console object is installed once per VM; the recorder is attached for the
// duration of one invocation and detached afterwards, so output emitted
// outside an invocation is dropped.
type bridge struct {
	mu  sync.Mutex
	rec *Recorder
}

var consoleLevels = []string{"log", "info", "warn", "error"}

func (b *bridge) install(vm *goja.Runtime) error {
	console := vm.NewObject()
	for _, level := range consoleLevels {
		if err := console.Set(level, b.sink(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// sink builds one console function. The message is the space-joined string
// form of every argument.
func (b *bridge) sink(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		b.mu.Lock()
		rec := b.rec
		b.mu.Unlock()
		if rec == nil {
			return goja.Undefined()
		}

		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		rec.Append(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (b *bridge) attach(rec *Recorder) {
	b.mu.Lock()
	b.rec = rec
	b.mu.Unlock()
}

func (b *bridge) detach() {
	b.mu.Lock()
	b.rec = nil
	b.mu.Unlock()
}
