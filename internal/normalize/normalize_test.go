package normalize

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
)

var pngSig = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "application/octet-stream"},
		{"png signature", pngSig, "image/png"},
		{"jpeg signature", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46}, "image/jpeg"},
		{"gif signature", []byte("GIF89a\x01\x00\x01\x00"), "image/gif"},
		{"pdf header", []byte("%PDF-1.4\n%test"), "application/pdf"},
		{"plain text", []byte("Hello"), "text/plain"},
		{"json object", []byte(`{"a": 1}`), "application/json"},
		{"json array", []byte(`  [1, 2, 3]`), "application/json"},
		{"html", []byte("<!DOCTYPE html><html><body></body></html>"), "text/html"},
		{"svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), "image/svg+xml"},
		{"svg with xml prolog", []byte(`<?xml version="1.0"?><svg></svg>`), "image/svg+xml"},
		{"xml", []byte(`<?xml version="1.0"?><note><to>x</to></note>`), "application/xml"},
		{"arbitrary binary", []byte{0x01, 0x02, 0x03, 0x04, 0x05}, "application/octet-stream"},
		{"invalid utf8", []byte{0xc3, 0x28, 0xc3, 0x28}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDataURIHello(t *testing.T) {
	got := DataURI([]byte("Hello"))
	if got != "data:text/plain;base64,SGVsbG8=" {
		t.Errorf("DataURI(Hello) = %q", got)
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	payload := append(append([]byte{}, pngSig...), 0xde, 0xad, 0xbe, 0xef)
	uri := DataURI(payload)

	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %q", uri)
	}

	decoded, err := base64.StdEncoding.DecodeString(uri[strings.IndexByte(uri, ',')+1:])
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, payload) {
		t.Errorf("round trip mismatch: %v != %v", decoded, payload)
	}
}

func TestValueNestedTraversal(t *testing.T) {
	in := map[string]any{
		"image": pngSig,
		"items": []any{
			[]byte("Hello"),
			map[string]any{"data": []byte{0x01, 0x02}},
		},
		"count": 3,
		"name":  "report",
	}

	out, ok := Value(in).(map[string]any)
	if !ok {
		t.Fatal("expected map result")
	}

	if s, _ := out["image"].(string); !strings.HasPrefix(s, "data:image/png;base64,") {
		t.Errorf("image not converted: %v", out["image"])
	}
	items, ok := out["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items shape not preserved: %v", out["items"])
	}
	if s, _ := items[0].(string); !strings.HasPrefix(s, "data:text/plain;base64,") {
		t.Errorf("items[0] not converted: %v", items[0])
	}
	nested, ok := items[1].(map[string]any)
	if !ok {
		t.Fatalf("items[1] shape not preserved: %v", items[1])
	}
	if s, _ := nested["data"].(string); !strings.HasPrefix(s, "data:") {
		t.Errorf("nested buffer not converted: %v", nested["data"])
	}
	if out["count"] != 3 || out["name"] != "report" {
		t.Errorf("scalars changed: %v %v", out["count"], out["name"])
	}
}

func TestValueIdempotent(t *testing.T) {
	in := map[string]any{
		"uri":  "data:text/plain;base64,SGVsbG8=",
		"nums": []any{1.5, 2.5},
		"ok":   true,
		"none": nil,
	}

	once := Value(in)
	twice := Value(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not idempotent: %v != %v", once, twice)
	}
}

type opaque struct{ n int }

func TestValueOpaquePassthrough(t *testing.T) {
	o := &opaque{n: 7}
	if got := Value(o); got != any(o) {
		t.Errorf("opaque value not returned identically")
	}
}
