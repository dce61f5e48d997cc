package tree

import "strings"

// IsStackEntry reports whether a leaf metadata entry summarizes a stack of
// slices rather than a single file. Stack keys look like "proj_*.tif".
func IsStackEntry(key string, v any) bool {
	m, ok := v.(map[string]any)
	if !ok || !strings.Contains(key, "*") {
		return false
	}
	_, ok = m["slices"]
	return ok
}
