// Package docpath reads and writes values inside semi-structured collection
// documents using dot-delimited paths such as "income.salary.value_monthly_brl".
//
// Segments are always map keys: numeric-looking segments and empty segments
// are plain string keys, and slices are never traversed. Set never mutates its
// input; every map on the written path is copied so callers can rely on a new
// document value after each change.
package docpath

import "strings"

// Split breaks a path into segments. An empty path is a single empty key.
func Split(path string) []string {
	return strings.Split(path, ".")
}

// Lookup returns the value at path and whether it exists.
// It stops at the first missing segment or non-map node.
func Lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, segment := range Split(path) {
		node, ok := current.(map[string]any)
		if !ok || node == nil {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Get returns the value at path, or nil when the path does not exist
func Get(doc map[string]any, path string) any {
	v, _ := Lookup(doc, path)
	return v
}

// Set returns a copy of doc with value written at path.
// Missing intermediate maps are created; a non-map value in the way is replaced by a map.
func Set(doc map[string]any, path string, value any) map[string]any {
	return setSegments(doc, Split(path), value)
}

func setSegments(node map[string]any, segments []string, value any) map[string]any {
	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}

	key := segments[0]
	if len(segments) == 1 {
		out[key] = value
		return out
	}

	child, _ := node[key].(map[string]any)
	out[key] = setSegments(child, segments[1:], value)
	return out
}

// Clone deep-copies maps and slices of a document tree. Scalars are shared.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return CloneValue(doc).(map[string]any)
}

// CloneValue deep-copies any document value
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
