// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds everything the server needs to start.
type Config struct {
	Port string

	// UseMemoryStore selects the in-memory store instead of Firestore.
	UseMemoryStore bool
	// SkipAuth disables token verification. Development only.
	SkipAuth bool

	GoogleCloudProject string
	// FirebaseCredentialsFile points at a service account key for local runs.
	// Empty means application default credentials.
	FirebaseCredentialsFile string

	OpenRouterAPIKey string
	OpenRouterModel  string

	MaxPredictionsPerMonth int
	MaxConcurrentFits      int

	LogLevel       string
	AllowedOrigins []string
}

// Load reads the configuration from environment variables, applying defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		UseMemoryStore:          getEnvBool("USE_MEMORY_STORE", false),
		SkipAuth:                getEnvBool("SKIP_AUTH", false),
		GoogleCloudProject:      getEnv("GOOGLE_CLOUD_PROJECT", ""),
		FirebaseCredentialsFile: getEnvFirst("GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_KEY"),
		OpenRouterAPIKey:        getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:         getEnv("OPENROUTER_MODEL", "openai/gpt-oss-20b:free"),
		MaxPredictionsPerMonth:  getEnvInt("MAX_PREDICTIONS_PER_MONTH", 5),
		MaxConcurrentFits:       getEnvInt("MAX_CONCURRENT_FITS", 4),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:          getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getEnvFirst returns the first non-empty value among the given keys.
func getEnvFirst(keys ...string) string {
	for _, key := range keys {
		if value := getEnv(key, ""); value != "" {
			return value
		}
	}
	return ""
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
