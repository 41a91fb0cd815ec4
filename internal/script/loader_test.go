package script

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		script string
		want   bool
	}{
		{"http://example.com/fn.js", true},
		{"https://example.com/fn.js", true},
		{"export function run() {}", false},
		{"// https://example.com in a comment", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsRemote(tt.script); got != tt.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.script, got, tt.want)
		}
	}
}

func TestSourceInlinePassthrough(t *testing.T) {
	loader := NewLoader(DefaultConfig())

	src := "export function run(x) { return x; }"
	got, err := loader.Source(context.Background(), src)
	if err != nil {
		t.Fatalf("Source() error = %v", err)
	}
	if got != src {
		t.Errorf("inline source changed: %q", got)
	}
}

func TestSourceRemoteFetch(t *testing.T) {
	const remote = "export function run() { return 1; }"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(remote))
	}))
	defer srv.Close()

	loader := NewLoader(DefaultConfig())
	got, err := loader.Source(context.Background(), srv.URL+"/fn.js")
	if err != nil {
		t.Fatalf("Source() error = %v", err)
	}
	if got != remote {
		t.Errorf("remote source = %q, want %q", got, remote)
	}
}

func TestSourceRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/huge":
			w.Write(make([]byte, 2048))
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxBytes = 1024
	loader := NewLoader(cfg)

	if _, err := loader.Source(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404 response")
	}
	if _, err := loader.Source(context.Background(), srv.URL+"/huge"); err == nil {
		t.Error("expected error for oversized source")
	}
}

func TestCompileModuleSyntax(t *testing.T) {
	loader := NewLoader(DefaultConfig())

	tests := []struct {
		name   string
		script string
	}{
		{"export function", "export function run(x) { return x.a; }"},
		{"export const arrow", "export const run = (x) => x;"},
		{"export default", "export default function(x) { return x; }"},
		{"commonjs style", "exports.run = function(x) { return x; };"},
		{"plain expression", "function run(x) { return x; }\nexports.run = run;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := loader.Compile(context.Background(), tt.script)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if mod.Program == nil {
				t.Error("Compile() returned nil program")
			}
		})
	}
}

func TestCompileSyntaxError(t *testing.T) {
	loader := NewLoader(DefaultConfig())

	_, err := loader.Compile(context.Background(), "export function run( {")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse script") {
		t.Errorf("unexpected error: %v", err)
	}
}
