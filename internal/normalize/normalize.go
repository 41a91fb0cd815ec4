package normalize

// Value recursively converts every binary buffer inside v into a data URI
// string, preserving structure everywhere else.
//
// Buffers are terminal and never recursed into. Sequences keep element order,
// mappings keep their key set. Scalars and opaque host types are returned
// identically, which signals "not a payload buffer" and makes Value
// idempotent on binary-free input.
func Value(v any) any {
	switch t := v.(type) {
	case []byte:
		return DataURI(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = Value(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = Value(el)
		}
		return out
	default:
		return v
	}
}
