package config

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Templates holds overridable prompt template bodies, keyed by name. Missing
// keys fall back to the compiled-in templates in internal/prompt.
type Templates map[string]string

// LoadTemplates reads template overrides; any failure yields an empty map so
// the compiled-in templates stay in force.
func LoadTemplates(path string) Templates {
	if path == "" {
		return Templates{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("template file unreadable, using built-ins", "path", path, "error", err)
		return Templates{}
	}
	var templates Templates
	if err := json.Unmarshal(data, &templates); err != nil {
		slog.Warn("template file malformed, using built-ins", "path", path, "error", err)
		return Templates{}
	}
	return templates
}
