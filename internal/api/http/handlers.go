package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/my-piper/piper-deno/internal/logging"
	"github.com/my-piper/piper-deno/internal/sandbox"
)

// Executor runs one validated request to completion.
type Executor interface {
	Execute(ctx context.Context, req *sandbox.Request) *sandbox.Outcome
}

// Handler exposes the execution engine over HTTP.
type Handler struct {
	engine  Executor
	logger  *logging.Logger
	started time.Time
}

// NewHandler creates the HTTP handler set.
func NewHandler(engine Executor, logger *logging.Logger) *Handler {
	return &Handler{
		engine:  engine,
		logger:  logger,
		started: time.Now(),
	}
}

// executeRequest is the inbound wire shape.
type executeRequest struct {
	Script    string         `json:"script"`
	Fn        string         `json:"fn"`
	Payload   map[string]any `json:"payload"`
	Timeout   *int64         `json:"timeout"`   // milliseconds
	Isolation string         `json:"isolation"` // "process" (default) or "none"
}

// Execute handles POST /execute.
func (h *Handler) Execute(c *gin.Context) {
	var body executeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	req, errMsg := buildRequest(&body)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	out := h.engine.Execute(c.Request.Context(), req)
	h.render(c, out)
}

// buildRequest validates the wire shape into an engine request. It returns
// a non-empty message on validation failure.
func buildRequest(body *executeRequest) (*sandbox.Request, string) {
	if body.Script == "" {
		return nil, "script is required"
	}
	if body.Fn == "" {
		return nil, "fn is required"
	}
	if body.Payload == nil {
		return nil, "payload is required"
	}
	if body.Timeout != nil && *body.Timeout < 1 {
		return nil, "timeout must be at least 1 millisecond"
	}

	var mode sandbox.IsolationMode
	switch body.Isolation {
	case "", "process":
		mode = sandbox.IsolationProcess
	case "none":
		mode = sandbox.IsolationNone
	default:
		return nil, `isolation must be "process" or "none"`
	}

	req := &sandbox.Request{
		Script:    body.Script,
		Function:  body.Fn,
		Payload:   body.Payload,
		Isolation: mode,
	}
	if body.Timeout != nil {
		req.Timeout = time.Duration(*body.Timeout) * time.Millisecond
	}
	return req, ""
}

// render maps an outcome onto the response contract: sandboxed-code
// failures carry full diagnostics, infrastructure failures a single
// message.
func (h *Handler) render(c *gin.Context, out *sandbox.Outcome) {
	if out.Success() {
		c.JSON(http.StatusOK, gin.H{
			"result": out.Result,
			"logs":   logsOrEmpty(out.Logs),
		})
		return
	}

	f := out.Failure
	switch f.Kind {
	case sandbox.KindRuntime:
		resp := gin.H{
			"message": f.Message,
			"stack":   f.Stack,
			"logs":    logsOrEmpty(f.Logs),
		}
		if f.Code != "" {
			resp["code"] = f.Code
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case sandbox.KindTimeout:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": f.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": f.Message})
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "sandbox",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

func logsOrEmpty(logs []sandbox.LogEntry) []sandbox.LogEntry {
	if logs == nil {
		return []sandbox.LogEntry{}
	}
	return logs
}
