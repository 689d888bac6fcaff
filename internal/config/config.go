package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the extractor, loader and chat server.
type Config struct {
	LogDir      string
	LogFileSize int64
	LogLevel    slog.Level
	LogFormat   string

	DataDir       string
	FileExtension string
	DBPath        string

	TiktokenModel  string
	MaxChunkTokens int

	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingBatchSize int

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	MaxTokens           int
	TokenHistoryPadding int
	TokenPromptPadding  int
	TokenSafetyMargin   int
	MinResponseTokens   int

	DenseTopK     int
	KeywordTopK   int
	DenseWeight   float64
	KeywordWeight float64

	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	APIPort string

	Extract ExtractConfig
}

// ExtractConfig holds the scraping parameters for the article extractor.
type ExtractConfig struct {
	BaseURLs       []string
	URLPrefix      string
	ContentClass   string
	ExcludeClasses []string
	TitleSuffix    string
	InitialWait    time.Duration
	ScrollPause    time.Duration
	ScrollStep     int
	MaxScrolls     int
	Concurrency    int
	FetchTimeout   time.Duration
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		LogDir:             getEnv("LOG_DIR", "./logs"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DataDir:            getEnv("DATA_DIR", "./data/Articles"),
		FileExtension:      getEnv("FILE_EXTENSION", ".md"),
		DBPath:             getEnv("DB_PATH", "./data/industryinsider.db"),
		TiktokenModel:      getEnv("TIKTOKEN_MODEL", "cl100k_base"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-l6-v2"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "articles"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "gemini-1.5-flash"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		SessionStore:       strings.ToLower(getEnv("SESSION_STORE", "memory")),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		APIPort:            getEnv("API_PORT", "9000"),
	}

	// p collects the first parse error so every numeric field reads as one line.
	p := &parser{}

	cfg.LogFileSize = int64(p.int("LOG_FILE_SIZE", 5*1024*1024))
	cfg.LogLevel = p.level("LOG_LEVEL", slog.LevelInfo)
	cfg.MaxChunkTokens = p.int("MAX_CHUNK_TOKENS", 512)
	cfg.EmbeddingBatchSize = p.int("EMBEDDING_BATCH_SIZE", 32)
	// Must match the output size of the embedding model; all-MiniLM-L6-v2 produces 384 dimensions.
	cfg.QdrantVectorSize = p.int("QDRANT_VECTOR_SIZE", 384)
	cfg.MaxTokens = p.int("MAX_TOKENS", 8192)
	cfg.TokenHistoryPadding = p.int("TOKEN_HISTORY_PADDING", 4)
	cfg.TokenPromptPadding = p.int("TOKEN_PROMPT_PADDING", 50)
	cfg.TokenSafetyMargin = p.int("TOKEN_SAFETY_MARGIN", 500)
	cfg.MinResponseTokens = p.int("MIN_RESPONSE_TOKENS", 256)
	cfg.DenseTopK = p.int("DENSE_TOP_K", 4)
	cfg.KeywordTopK = p.int("KEYWORD_TOP_K", 5)
	cfg.DenseWeight = p.float("RETRIEVAL_DENSE_WEIGHT", 0.7)
	cfg.KeywordWeight = p.float("RETRIEVAL_KEYWORD_WEIGHT", 0.3)
	cfg.RedisDB = p.int("REDIS_DB", 0)
	cfg.SessionTTL = p.duration("SESSION_TTL", 24*time.Hour)

	cfg.Extract = ExtractConfig{
		BaseURLs:       getEnvList("EXTRACT_BASE_URLS", []string{"https://economictimes.indiatimes.com/industry/indl-goods/svs/engineering"}),
		URLPrefix:      getEnv("EXTRACT_URL_PREFIX", "https://economictimes.indiatimes.com/"),
		ContentClass:   getEnv("EXTRACT_CLASS", "artText"),
		ExcludeClasses: getEnvList("EXTRACT_EXCLUDE_CLASSES", []string{"growfast_widget custom_ad", "inSideInd"}),
		TitleSuffix:    getEnv("EXTRACT_TITLE_SUFFIX", " - The Economic Times"),
		InitialWait:    p.duration("EXTRACT_INITIAL_WAIT", 10*time.Second),
		ScrollPause:    p.duration("EXTRACT_SCROLL_PAUSE", 2*time.Second),
		ScrollStep:     p.int("EXTRACT_SCROLL_STEP", 3000),
		MaxScrolls:     p.int("EXTRACT_MAX_SCROLLS", 200),
		Concurrency:    p.int("EXTRACT_CONCURRENCY", 4),
		FetchTimeout:   p.duration("EXTRACT_FETCH_TIMEOUT", 30*time.Second),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Create the database directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.QdrantVectorSize <= 0 {
		return fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	if c.MaxChunkTokens <= 0 {
		return fmt.Errorf("MAX_CHUNK_TOKENS must be greater than 0")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be greater than 0")
	}
	if c.TokenSafetyMargin >= c.MaxTokens {
		return fmt.Errorf("TOKEN_SAFETY_MARGIN (%d) must be below MAX_TOKENS (%d)", c.TokenSafetyMargin, c.MaxTokens)
	}
	if c.DenseTopK <= 0 || c.KeywordTopK <= 0 {
		return fmt.Errorf("DENSE_TOP_K and KEYWORD_TOP_K must be greater than 0")
	}
	if c.DenseWeight < 0 || c.KeywordWeight < 0 || c.DenseWeight+c.KeywordWeight == 0 {
		return fmt.Errorf("retrieval weights must be non-negative and not both zero")
	}
	if !strings.HasPrefix(c.FileExtension, ".") {
		return fmt.Errorf("FILE_EXTENSION must start with a dot, got %q", c.FileExtension)
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore)
	}
	if c.Extract.Concurrency <= 0 {
		return fmt.Errorf("EXTRACT_CONCURRENCY must be greater than 0")
	}
	return nil
}

// loadDotEnv loads .env from the working directory, then the nearest parent that has one.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" || p.err != nil {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("%s must be a valid integer: %w", key, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" || p.err != nil {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.err = fmt.Errorf("%s must be a valid number: %w", key, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" || p.err != nil {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.err = fmt.Errorf("%s must be a valid duration: %w", key, err)
		return def
	}
	return v
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	raw := getEnv(key, "")
	if raw == "" || p.err != nil {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.err = fmt.Errorf("%s must be one of debug, info, warn, error: %w", key, err)
		return def
	}
	return lvl
}
