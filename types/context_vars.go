// Package types holds small value types shared across packages.
package types

import (
	"maps"

	json "github.com/goccy/go-json"
)

// ContextVars are caller-supplied values available to instruction templates
// and to tools that declare a ContextVars parameter. Not safe for concurrent
// modification.
type ContextVars map[string]any

// String renders the variables as JSON, or "" when they cannot be encoded.
func (cv ContextVars) String() string {
	jsonData, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(jsonData)
}

// Merge returns a new map with the entries of cv overridden by other.
func (cv ContextVars) Merge(other ContextVars) ContextVars {
	out := make(ContextVars, len(cv)+len(other))
	maps.Copy(out, cv)
	maps.Copy(out, other)
	return out
}
