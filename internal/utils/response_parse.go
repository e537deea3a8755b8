// Package utils holds small helpers shared by the pipeline stages.
package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject trims a raw model reply down to its outermost JSON
// object. Models often wrap the payload in prose or code fences; the brace
// scan recovers the object without caring about the wrapping.
func ExtractJSONObject(raw string) (string, bool) {
	clean := strings.TrimSpace(raw)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return clean[start : end+1], true
}

// ParseJSONInto salvages the outermost JSON object from raw and decodes it
// into target.
func ParseJSONInto(raw string, target any) error {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(obj), target); err != nil {
		return fmt.Errorf("failed to parse structured response: %w", err)
	}
	return nil
}

// TruncateRunes bounds s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
