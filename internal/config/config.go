package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	GeminiAPIKey string

	MilvusAddr       string
	MilvusCollection string

	RedisAddr string
	RedisDB   int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	DefaultChunking string
	DefaultBackend  string
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	EmbedBatchSize  int
	LocalEmbedDim   int
	SessionTTL      time.Duration
	MaxTurns        int
}

// Load reads the environment (via .env when present) into a Config. Clients
// are constructed from it once in main and injected; there is no global
// configuration state.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	return Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "rag_app.db"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		MilvusAddr:       getEnv("MILVUS_ADDR", ""),
		MilvusCollection: getEnv("MILVUS_COLLECTION", "rag_chunks"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		DefaultChunking: getEnv("DEFAULT_CHUNKING_METHOD", "recursive"),
		DefaultBackend:  getEnv("DEFAULT_EMBEDDING_BACKEND", "gemini"),
		ChunkSize:       getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:    getEnvAsInt("CHUNK_OVERLAP", 200),
		TopK:            getEnvAsInt("TOP_K", 5),
		EmbedBatchSize:  getEnvAsInt("EMBED_BATCH_SIZE", 16),
		LocalEmbedDim:   getEnvAsInt("LOCAL_EMBED_DIM", 256),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", time.Hour),
		MaxTurns:        getEnvAsInt("SESSION_MAX_TURNS", 50),
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
