// Package config loads application configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port string

	// Neo4j connection
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Redis job store
	RedisAddr string
	RedisDB   int

	// Embedding / LLM provider (OpenAI-compatible)
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbedModel     string
	EmbedDimension int
	LLMModel       string

	// Ingestion
	UploadDir    string
	BatchSize    int
	EmbedRateMax int // requests allowed per sliding 60s window

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Port: getEnv("DOCUGRAPH_PORT", "8000"),

		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		EmbedModel:     getEnv("DOCUGRAPH_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimension: getEnvInt("DOCUGRAPH_EMBED_DIMENSION", 1536),
		LLMModel:       getEnv("DOCUGRAPH_LLM_MODEL", "gpt-4o-mini"),

		UploadDir:    getEnv("DOCUGRAPH_UPLOAD_DIR", "data/uploads"),
		BatchSize:    getEnvInt("DOCUGRAPH_BATCH_SIZE", 50),
		EmbedRateMax: getEnvInt("DOCUGRAPH_EMBED_RATE_MAX", 10),

		LogFile:  getEnv("DOCUGRAPH_LOG_FILE", "/tmp/docugraph.log"),
		LogLevel: parseLogLevel(getEnv("DOCUGRAPH_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
