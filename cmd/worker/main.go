package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/bytedance/sonic"

	"github.com/my-piper/piper-deno/internal/sandbox"
	"github.com/my-piper/piper-deno/internal/sandbox/isolate"
	"github.com/my-piper/piper-deno/internal/sandbox/process"
	"github.com/my-piper/piper-deno/internal/script"
)

func main() {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatal("read request: %v", err)
	}

	var req process.Request
	if err := sonic.Unmarshal(raw, &req); err != nil {
		fatal("bad request: %v", err)
	}

	if req.MemoryLimitMB > 0 {
		limit := req.MemoryLimitMB << 20
		debug.SetMemoryLimit(limit)
		go watchHeap(limit)
	}

	rt, err := isolate.NewRuntime(script.NewLoader(script.DefaultConfig()))
	if err != nil {
		fatal("init runtime: %v", err)
	}

	rep := rt.Invoke(context.Background(), req.Script, req.Function, req.Payload)

	var resp process.Response
	if rep.Err != nil {
		message := rep.Err.Message
		if rep.Err.Code == sandbox.CodeMissingExport {
			message = fmt.Sprintf("Function %q not found in module", req.Function)
		}
		resp = process.Response{
			Type:    "error",
			Error:   string(rep.Err.Kind),
			Message: message,
			Stack:   rep.Err.Stack,
			Code:    rep.Err.Code,
			Logs:    logsOrEmpty(rep.Err.Logs),
		}
	} else {
		resp = process.Response{
			Type:   "success",
			Result: rep.Result,
			Logs:   logsOrEmpty(rep.Logs),
		}
	}

	out, err := sonic.Marshal(resp)
	if err != nil {
		fatal("encode response: %v", err)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		fatal("write response: %v", err)
	}
}

// watchHeap exits with the reserved out-of-memory code once the live heap
// crosses the ceiling. SetMemoryLimit alone only makes the GC thrash; the
// watchdog turns sustained memory abuse into a structural signal the parent
// can map without parsing stderr.
func watchHeap(limit int64) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var ms runtime.MemStats
	for range ticker.C {
		runtime.ReadMemStats(&ms)
		if int64(ms.HeapAlloc) > limit {
			fmt.Fprintln(os.Stderr, "worker: memory limit exceeded")
			os.Exit(process.ExitOOM)
		}
	}
}

func logsOrEmpty(logs []sandbox.LogEntry) []sandbox.LogEntry {
	if logs == nil {
		return []sandbox.LogEntry{}
	}
	return logs
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "worker: "+format+"\n", args...)
	os.Exit(1)
}
