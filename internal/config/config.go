package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Ai       AIConfig
	Rag      RagConfig
}

type AppConfig struct {
	Name               string
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	RedisURL           string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenMinutes int
	RefreshTokenDays   int
	GuestChatPerMinute int
}

type AIConfig struct {
	BaseURL        string // OpenAI-compatible endpoint (DashScope compatible-mode by default)
	APIKey         string
	EmbeddingModel string
	RewriteModel   string
	GenerateModel  string
}

type RagConfig struct {
	CollectionFAQ      string
	CollectionStandard string
	CollectionResearch string
	CollectionInternal string
	CollectionPersonal string

	FAQScoreThreshold  float64
	FusionVectorWeight float64

	HistoryWindowTurns int
	SessionTTLSeconds  int
	HistoryCapTurns    int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Name:               getEnv("APP_NAME", "campus-rag-backend"),
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", "campus_rag_secret_key_2025"),
			AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
			RefreshTokenDays:   getEnvAsInt("REFRESH_TOKEN_EXPIRE_DAYS", 7),
			GuestChatPerMinute: getEnvAsInt("GUEST_CHAT_PER_MINUTE", 10),
		},
		Ai: AIConfig{
			BaseURL:        getEnv("AI_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			APIKey:         getEnv("DASHSCOPE_API_KEY", ""),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-v4"),
			RewriteModel:   getEnv("REWRITE_MODEL_NAME", "qwen-flash"),
			GenerateModel:  getEnv("GENERATE_MODEL_NAME", "qwen3-max"),
		},
		Rag: RagConfig{
			CollectionFAQ:      getEnv("COLLECTION_FAQ", "rag_faq"),
			CollectionStandard: getEnv("COLLECTION_STANDARD", "rag_standard"),
			CollectionResearch: getEnv("COLLECTION_KNOWLEDGE", "rag_knowledge"),
			CollectionInternal: getEnv("COLLECTION_INTERNAL", "rag_internal"),
			CollectionPersonal: getEnv("COLLECTION_PERSONAL", "rag_person_info"),

			FAQScoreThreshold:  getEnvAsFloat("FAQ_SCORE_THRESHOLD", 0.8),
			FusionVectorWeight: getEnvAsFloat("FUSION_VECTOR_WEIGHT", 0.6),

			HistoryWindowTurns: getEnvAsInt("HISTORY_WINDOW_TURNS", 6),
			SessionTTLSeconds:  getEnvAsInt("SESSION_TTL_SECONDS", 3600),
			HistoryCapTurns:    getEnvAsInt("HISTORY_CAP_TURNS", 50),
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
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
