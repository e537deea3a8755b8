// Package config loads configuration from environment variables and
// optional JSON tuning files.
package config

import (
	"os"
	"strconv"
)

// Config holds runtime settings.
type Config struct {
	DatabaseURL    string
	GoogleAPIKey   string
	XAIAPIKey      string
	LLMModel       string
	EmbeddingModel string
	TuningFile     string
	TriggersFile   string
	TemplatesFile  string
	HistoryLimit   int
	RequestTimeout int // seconds
	MemoryCapacity int
	WorkingSetSize int
}

// Load reads env vars and applies defaults. Tuning/trigger/template files are
// optional: a missing or malformed file falls back to in-code defaults and is
// never fatal.
func Load() Config {
	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
		XAIAPIKey:      os.Getenv("XAI_API_KEY"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
		TuningFile:     os.Getenv("COMPANION_TUNING_FILE"),
		TriggersFile:   os.Getenv("COMPANION_TRIGGERS_FILE"),
		TemplatesFile:  os.Getenv("COMPANION_TEMPLATES_FILE"),
	}

	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 10)
	cfg.RequestTimeout = getEnvInt("REQUEST_TIMEOUT", 20)
	cfg.MemoryCapacity = getEnvInt("MEMORY_CAPACITY", 200)
	cfg.WorkingSetSize = getEnvInt("WORKING_SET_SIZE", 50)

	if cfg.LLMModel == "" {
		cfg.LLMModel = "grok-4-fast"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}

	return cfg
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
