package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
// Note: stateless configuration - everything comes from the environment,
// with defaults suitable for a local Ableton Live + AbletonOSC setup
type Config struct {
	// LLM API Keys
	OpenAIAPIKey string // OpenAI API key for GPT models
	GeminiAPIKey string // Google Gemini API key (optional)

	// Generation
	Model             string        // LLM model for track generation
	GenerationTimeout time.Duration // Bound on a single collaborator call

	// MIDI output
	OutputDir string // Directory for exported .mid files

	// Live session (AbletonOSC)
	LiveHost        string // DAW control endpoint host
	LiveSendPort    int    // Port the DAW listens on
	LiveReceivePort int    // Port we receive replies on

	// Observability
	SentryDSN string // Sentry DSN for error tracking
}

func Load() *Config {
	return &Config{
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		Model:             getEnv("MUSICFLOW_MODEL", "gpt-4o"),
		GenerationTimeout: time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 120)) * time.Second,
		OutputDir:         getEnv("OUTPUT_DIR", "./output"),
		LiveHost:          getEnv("LIVE_HOST", "127.0.0.1"),
		LiveSendPort:      getEnvInt("LIVE_SEND_PORT", 11000),
		LiveReceivePort:   getEnvInt("LIVE_RECV_PORT", 11001),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
