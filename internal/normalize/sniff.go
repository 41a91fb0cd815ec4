package normalize

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// octetStream is the fallback type for anything unrecognizable.
	octetStream = "application/octet-stream"

	// sniffLimit bounds how much of a payload the text classifier inspects.
	sniffLimit = 512
)

// Detect returns the MIME type of raw bytes.
//
// Binary formats are matched by magic number first; payloads that look like
// text go through a stricter classifier that distinguishes JSON, HTML, SVG,
// XML and plain text. Anything that is neither a known binary format nor
// valid printable UTF-8 falls back to application/octet-stream.
func Detect(data []byte) string {
	if len(data) == 0 {
		return octetStream
	}

	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if !textual(mt) {
		return mt
	}

	return classifyText(data)
}

// DataURI encodes raw bytes as a data URI with a sniffed MIME type.
func DataURI(data []byte) string {
	return "data:" + Detect(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// textual reports whether a detected type should be re-classified by the
// text rules instead of being trusted as a binary match.
func textual(mt string) bool {
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/json", "application/x-ndjson", "application/geo+json",
		"application/xml", "image/svg+xml",
		"application/javascript", "text/javascript", "application/csv":
		return true
	}
	return false
}

// classifyText inspects up to sniffLimit bytes of printable UTF-8.
func classifyText(data []byte) string {
	head := data
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
		// Drop a rune split by the truncation.
		for i := 0; i < 3 && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	if !utf8.Valid(head) || !printable(head) {
		return octetStream
	}

	text := string(head)
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return "application/json"
	case strings.Contains(lower, "<!doctype html") || strings.Contains(lower, "<html"):
		return "text/html"
	// SVG is checked before generic XML so documents with an XML prolog
	// still classify as SVG.
	case strings.Contains(lower, "<svg"):
		return "image/svg+xml"
	case strings.HasPrefix(trimmed, "<?xml") || strings.HasPrefix(trimmed, "<"):
		return "application/xml"
	default:
		return "text/plain"
	}
}

// printable reports whether text contains only printable runes and common
// whitespace.
func printable(data []byte) bool {
	for _, r := range string(data) {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
