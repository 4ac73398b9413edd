// Package jsonx converts typed values to the dynamic JSON maps some APIs
// take as input.
package jsonx

import json "github.com/goccy/go-json"

// ToDynamicJSON round-trips val through JSON into a map. It fails for values
// that do not encode to a JSON object.
func ToDynamicJSON(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}
