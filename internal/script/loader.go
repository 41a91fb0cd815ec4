package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/go-resty/resty/v2"
)

// Module is one ephemeral, export-enumerable compilation unit.
//
// Program evaluates to a function value expecting (module, exports, require);
// calling it populates module.exports with whatever the script exported.
type Module struct {
	Program *goja.Program
}

// Config defines loader limits for remote script references.
type Config struct {
	FetchTimeout time.Duration // remote fetch deadline
	MaxBytes     int64         // remote source size cap, 0 = unlimited
}

// DefaultConfig returns loader limits suitable for untrusted callers.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 10 * time.Second,
		MaxBytes:     1 << 20,
	}
}

// Loader turns script text or URL references into compiled modules.
type Loader struct {
	http     *resty.Client
	maxBytes int64
}

// NewLoader creates a loader with the provided limits.
func NewLoader(cfg Config) *Loader {
	client := resty.New().
		SetTimeout(cfg.FetchTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))

	return &Loader{
		http:     client,
		maxBytes: cfg.MaxBytes,
	}
}

// IsRemote reports whether script is a URL reference rather than inline
// source.
func IsRemote(script string) bool {
	return strings.HasPrefix(script, "http://") || strings.HasPrefix(script, "https://")
}

// Source resolves script text: URL references are fetched, inline source is
// returned unchanged.
func (l *Loader) Source(ctx context.Context, script string) (string, error) {
	if !IsRemote(script) {
		return script, nil
	}

	resp, err := l.http.R().SetContext(ctx).Get(script)
	if err != nil {
		return "", fmt.Errorf("fetch script: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch script: unexpected status %d", resp.StatusCode())
	}

	body := resp.Body()
	if l.maxBytes > 0 && int64(len(body)) > l.maxBytes {
		return "", fmt.Errorf("fetch script: source exceeds %d bytes", l.maxBytes)
	}
	return string(body), nil
}

// Compile resolves a script and compiles it into a module wrapper.
func (l *Loader) Compile(ctx context.Context, script string) (*Module, error) {
	src, err := l.Source(ctx, script)
	if err != nil {
		return nil, err
	}

	cjs, err := toCommonJS(src)
	if err != nil {
		return nil, err
	}

	wrapped := "(function(module, exports, require) {\n" + cjs + "\n})"
	prog, err := goja.Compile("module.js", wrapped, false)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}
	return &Module{Program: prog}, nil
}

// toCommonJS lowers ES module syntax so goja can evaluate it.
func toCommonJS(src string) (string, error) {
	res := esbuild.Transform(src, esbuild.TransformOptions{
		Loader:     esbuild.LoaderJS,
		Format:     esbuild.FormatCommonJS,
		Target:     esbuild.ES2017,
		Platform:   esbuild.PlatformNeutral,
		Sourcefile: "module.js",
	})
	if len(res.Errors) > 0 {
		parts := make([]string, len(res.Errors))
		for i, msg := range res.Errors {
			parts[i] = msg.Text
		}
		return "", fmt.Errorf("parse script: %s", strings.Join(parts, "; "))
	}
	return string(res.Code), nil
}
