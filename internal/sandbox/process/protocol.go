package process

import (
	"github.com/my-piper/piper-deno/internal/sandbox"
)

// ExitOOM is the reserved exit code the worker uses when its heap watchdog
// trips. It gives the parent a structural out-of-memory signal instead of
// relying solely on stderr pattern matching.
const ExitOOM = 57

// Request is the single document the parent writes to the worker's stdin.
type Request struct {
	Script        string         `json:"script"`
	Function      string         `json:"fn"`
	Payload       map[string]any `json:"payload"`
	MemoryLimitMB int64          `json:"memoryLimitMb"`
}

// Response is the single document the worker writes to stdout.
type Response struct {
	Type    string             `json:"type"` // "success" or "error"
	Result  any                `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"` // error name
	Message string             `json:"message,omitempty"`
	Stack   string             `json:"stack,omitempty"`
	Code    string             `json:"code,omitempty"`
	Logs    []sandbox.LogEntry `json:"logs"`
}
