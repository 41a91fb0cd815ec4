/*
Package normalize converts raw execution results into transport-safe values.

# Overview

User functions may return binary buffers (images, archives, arbitrary bytes)
nested anywhere inside their result. JSON cannot carry raw bytes, so every
buffer is rendered as a self-describing data URI:

	data:<mime-type>;base64,<payload>

Detection combines magic-number sniffing (gabriel-vasile/mimetype) with a
text classifier for printable payloads (JSON, HTML, SVG, XML, plain text).

# Traversal

Value walks sequences and string-keyed mappings recursively. Buffers are
terminal: they are encoded, never recursed into. Every other value, including
opaque host types, is returned unchanged, so applying Value to an already
normalized tree is a no-op.
*/
package normalize
