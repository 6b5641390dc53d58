package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite    = "sqlite"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"

	AuthFirebase = "firebase"
	AuthLocal    = "local"

	SummarizerHuggingFace = "huggingface"
	SummarizerGemini      = "gemini"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Document store
	DocumentStore      string
	SQLitePath         string
	DatabaseURL        string
	MigrationsDir      string
	MigrationsTable    string
	PGMaxConns         int
	PGMinConns         int
	PGConnMaxLifetime  time.Duration
	FirestoreProjectID string
	FirestoreCredsFile string

	// Auth provider
	AuthProvider    string
	FirebaseAPIKey  string
	FirebaseAuthURL string

	// Redis
	RedisURL string

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Gemini AI
	GeminiAPIKey         string
	GeminiChatModel      string
	GeminiConcurrentReqs int

	// Summarization
	Summarizer           string
	HFAPIToken           string
	HFAPIURL             string
	HFSummarizationModel string
	GenAISummaryModel    string

	// Archive retry workers
	ArchiveRetryWorkers int
	ArchiveMaxRetries   int

	// Uploads
	UploadMaxBytes int64

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		DocumentStore:        strings.ToLower(getEnvOrDefault("DOCUMENT_STORE", StoreSQLite)),
		SQLitePath:           getEnvOrDefault("SQLITE_PATH", "./data/knowledgegpt.db"),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "./migrations"),
		MigrationsTable:      getEnvOrDefault("MIGRATIONS_TABLE", "schema_migrations"),
		PGMaxConns:           getEnvAsIntOrDefault("PG_MAX_CONNS", 10),
		PGMinConns:           getEnvAsIntOrDefault("PG_MIN_CONNS", 1),
		PGConnMaxLifetime:    time.Duration(getEnvAsIntOrDefault("PG_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		FirestoreCredsFile:   getEnvOrDefault("FIRESTORE_CREDENTIALS_FILE", ""),
		AuthProvider:         strings.ToLower(getEnvOrDefault("AUTH_PROVIDER", AuthFirebase)),
		FirebaseAuthURL:      getEnvOrDefault("FIREBASE_AUTH_URL", "https://identitytoolkit.googleapis.com/v1"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		SessionTTL:           time.Duration(getEnvAsIntOrDefault("SESSION_TTL_MINUTES", 120)) * time.Minute,
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiChatModel:      getEnvOrDefault("GEMINI_CHAT_MODEL", "gemini-1.5-flash-8b"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		Summarizer:           strings.ToLower(getEnvOrDefault("SUMMARIZER", SummarizerHuggingFace)),
		HFAPIURL:             getEnvOrDefault("HF_API_URL", "https://api-inference.huggingface.co/models"),
		HFSummarizationModel: getEnvOrDefault("HF_SUMMARIZATION_MODEL", "Falconsai/text_summarization"),
		GenAISummaryModel:    getEnvOrDefault("GENAI_SUMMARY_MODEL", "gemini-2.0-flash"),
		ArchiveRetryWorkers:  getEnvAsIntOrDefault("ARCHIVE_RETRY_WORKERS", 2),
		ArchiveMaxRetries:    getEnvAsIntOrDefault("ARCHIVE_MAX_RETRIES", 5),
		UploadMaxBytes:       int64(getEnvAsIntOrDefault("UPLOAD_MAX_MB", 20)) << 20,
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	switch cfg.DocumentStore {
	case StorePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	case StoreFirestore:
		cfg.FirestoreProjectID = mustGetEnv("FIRESTORE_PROJECT_ID")
	}
	if cfg.AuthProvider == AuthFirebase {
		cfg.FirebaseAPIKey = mustGetEnv("FIREBASE_API_KEY")
	}
	if cfg.Summarizer == SummarizerHuggingFace {
		cfg.HFAPIToken = mustGetEnv("HF_API_TOKEN")
	}

	return cfg
}

// Validate checks the combinations of settings that Load cannot catch one
// variable at a time.
func (c *Config) Validate() error {
	switch c.DocumentStore {
	case StoreSQLite, StorePostgres, StoreFirestore:
	default:
		return fmt.Errorf("unknown DOCUMENT_STORE %q", c.DocumentStore)
	}
	switch c.AuthProvider {
	case AuthFirebase:
	case AuthLocal:
		if c.DocumentStore == StoreFirestore {
			return fmt.Errorf("AUTH_PROVIDER=local needs a sql document store, not %s", c.DocumentStore)
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}
	switch c.Summarizer {
	case SummarizerHuggingFace, SummarizerGemini:
	default:
		return fmt.Errorf("unknown SUMMARIZER %q", c.Summarizer)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	if c.DocumentStore == StorePostgres {
		if c.PGMaxConns <= 0 {
			return fmt.Errorf("PG_MAX_CONNS must be positive")
		}
		if c.PGMinConns < 0 || c.PGMinConns > c.PGMaxConns {
			return fmt.Errorf("PG_MIN_CONNS must be between 0 and PG_MAX_CONNS")
		}
		if strings.TrimSpace(c.MigrationsTable) == "" {
			return fmt.Errorf("MIGRATIONS_TABLE must not be empty")
		}
	}
	if c.GeminiConcurrentReqs <= 0 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
