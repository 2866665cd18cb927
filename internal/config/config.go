package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Rag       RAGConfig
	WebSearch WebSearchConfig
	Guardrail GuardrailConfig
	Stream    StreamConfig
	Realtime  RealtimeConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RealtimeLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // only "ollama" today
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "ollama", "openai" or "none"
	LLMModel          string
	OpenAIKey         string
	OpenAIBaseURL     string
	Temperature       float64
	MaxTokens         int
}

type RAGConfig struct {
	TopK           int
	ScoreThreshold float64
	RerankTopN     int
	MaxHistory     int
	ChunkSize      int
	ChunkOverlap   int
	EmbedTopic     string
}

type WebSearchConfig struct {
	Enabled    bool
	BaseURL    string
	MaxResults int
	Region     string
	CacheTTL   time.Duration
}

type GuardrailConfig struct {
	Enabled bool
}

type StreamConfig struct {
	ChunkSize    int
	ChunkDelay   time.Duration
	PollInterval time.Duration
}

type RealtimeConfig struct {
	WebsocketEnabled bool
	RedisChannel     string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogPath:    getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 2048),
		},
		Rag: RAGConfig{
			TopK:           getEnvAsInt("RETRIEVAL_TOP_K", 10),
			ScoreThreshold: getEnvAsFloat("RETRIEVAL_SCORE_THRESHOLD", 0.05),
			RerankTopN:     getEnvAsInt("RERANK_TOP_N", 5),
			MaxHistory:     getEnvAsInt("MAX_CONVERSATION_HISTORY", 10),
			ChunkSize:      getEnvAsInt("CHUNK_SIZE", 512),
			ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 50),
			EmbedTopic:     getEnv("EMBED_DOCUMENT_TOPIC_NAME", "EMBED_DOCUMENT_CONTENT"),
		},
		WebSearch: WebSearchConfig{
			Enabled:    getEnvAsBool("ENABLE_WEB_SEARCH", false),
			BaseURL:    getEnv("WEB_SEARCH_BASE_URL", "https://api.duckduckgo.com"),
			MaxResults: getEnvAsInt("WEB_SEARCH_MAX_RESULTS", 5),
			Region:     getEnv("WEB_SEARCH_REGION", "ca-en"),
			CacheTTL:   getEnvAsDuration("WEB_SEARCH_CACHE_TTL", 15*time.Minute),
		},
		Guardrail: GuardrailConfig{
			Enabled: getEnvAsBool("GUARDRAILS_ENABLED", true),
		},
		Stream: StreamConfig{
			ChunkSize:    getEnvAsInt("STREAM_CHUNK_SIZE", 5),
			ChunkDelay:   getEnvAsDuration("STREAM_CHUNK_DELAY", 10*time.Millisecond),
			PollInterval: getEnvAsDuration("STREAM_POLL_INTERVAL", 100*time.Millisecond),
		},
		Realtime: RealtimeConfig{
			WebsocketEnabled: getEnvAsBool("REALTIME_WS_ENABLED", true),
			RedisChannel:     getEnv("REALTIME_REDIS_CHANNEL", "pipeline_snapshots"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-ragchat-be"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("150ms") or bare milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
