package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector store kinds
const (
	VectorStoreMilvus   = "milvus"
	VectorStorePgvector = "pgvector"
	VectorStoreMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	VectorStore   VectorStoreConfig
	Embedding     EmbeddingConfig
	Generation    GenerationConfig
	Retrieval     RetrievalConfig
	Prompt        PromptConfig
	Retry         RetryConfig
	History       HistoryConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	// InitSchema creates the tables on startup when they do not exist
	InitSchema bool
}

// VectorStoreConfig selects and configures the knowledge backend
type VectorStoreConfig struct {
	Kind           string
	MilvusAddress  string
	MilvusUsername string
	MilvusPassword string
	MilvusDBName   string
	Timeout        time.Duration
	MemorySeedFile string
}

// EmbeddingConfig configures the OpenAI-compatible /embeddings endpoint
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	Dimension int
}

// GenerationConfig configures the OpenAI-compatible chat completion endpoint
type GenerationConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RetrievalConfig holds search parameters and the collection cache settings
type RetrievalConfig struct {
	TopK             int
	VectorField      string
	CollectionSuffix string
	CacheSize        int
	CacheTTL         time.Duration
}

// PromptConfig locates the template and labels the context block
type PromptConfig struct {
	TemplatePath  string
	QuestionLabel string
	AnswerLabel   string
}

// RetryConfig holds the retry policy for search and generation
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HistoryConfig sizes the background history writer
type HistoryConfig struct {
	BufferSize   int
	WorkerCount  int
	WriteTimeout time.Duration
}

// AuthConfig holds the HS256 token settings
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	TracingEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Database: loadDatabaseConfig(),
		VectorStore: VectorStoreConfig{
			Kind:           strings.ToLower(getEnv("VECTOR_STORE", VectorStoreMilvus)),
			MilvusAddress:  getEnv("MILVUS_ADDRESS", "localhost:19530"),
			MilvusUsername: getEnv("MILVUS_USERNAME", ""),
			MilvusPassword: getEnv("MILVUS_PASSWORD", ""),
			MilvusDBName:   getEnv("MILVUS_DB_NAME", ""),
			Timeout:        getEnvAsDuration("VECTOR_STORE_TIMEOUT", 10*time.Second),
			MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:11434/v1"),
			APIKey:    getEnv("EMBEDDING_API_KEY", "ollama"),
			Model:     getEnv("EMBEDDING_MODEL", "keepitreal/vietnamese-sbert"),
			Timeout:   getEnvAsDuration("EMBEDDING_TIMEOUT", 15*time.Second),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 0),
		},
		Generation: GenerationConfig{
			BaseURL: getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			APIKey:  getEnv("LLM_API_KEY", "ollama"),
			Model:   getEnv("LLM_MODEL", "gemma2"),
			Timeout: getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Retrieval: RetrievalConfig{
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 5),
			VectorField:      getEnv("RETRIEVAL_VECTOR_FIELD", "question_text_vector"),
			CollectionSuffix: getEnv("RETRIEVAL_COLLECTION_SUFFIX", "_info"),
			CacheSize:        getEnvAsInt("COLLECTION_CACHE_SIZE", 256),
			CacheTTL:         getEnvAsDuration("COLLECTION_CACHE_TTL", 10*time.Minute),
		},
		Prompt: PromptConfig{
			TemplatePath:  getEnv("PROMPT_TEMPLATE_PATH", "prompts/character.txt"),
			QuestionLabel: getEnv("PROMPT_QUESTION_LABEL", "question:"),
			AnswerLabel:   getEnv("PROMPT_ANSWER_LABEL", "answer:"),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 1),
			InitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
			MaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 2*time.Second),
		},
		History: HistoryConfig{
			BufferSize:   getEnvAsInt("HISTORY_BUFFER_SIZE", 1000),
			WorkerCount:  getEnvAsInt("HISTORY_WORKERS", 2),
			WriteTimeout: getEnvAsDuration("HISTORY_WRITE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", "character-chat"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
		},
	}

	if !cfg.IsProduction() && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "dev-secret-change-me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.VectorStore.Kind {
	case VectorStoreMilvus:
		if c.VectorStore.MilvusAddress == "" {
			return fmt.Errorf("milvus address is required")
		}
	case VectorStorePgvector, VectorStoreMemory:
	default:
		return fmt.Errorf("unknown vector store %q: use milvus, pgvector or memory", c.VectorStore.Kind)
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top-k must be at least 1")
	}
	if c.Retrieval.VectorField == "" {
		return fmt.Errorf("retrieval vector field is required")
	}
	if c.Retrieval.CacheSize < 0 {
		return fmt.Errorf("collection cache size cannot be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Prompt.TemplatePath == "" {
		return fmt.Errorf("prompt template path is required")
	}
	if c.Embedding.Model == "" || c.Generation.Model == "" {
		return fmt.Errorf("embedding and generation models are required")
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil && u.Host != "" {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      getEnvAsBool("DB_INIT_SCHEMA", false),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "postgres")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "character_chat")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
