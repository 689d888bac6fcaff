package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_DIR", "LOG_FILE_SIZE", "LOG_LEVEL", "LOG_FORMAT",
		"DATA_DIR", "FILE_EXTENSION", "DB_PATH",
		"TIKTOKEN_MODEL", "MAX_CHUNK_TOKENS",
		"EMBEDDING_BASE_URL", "EMBEDDING_MODEL", "EMBEDDING_API_KEY", "EMBEDDING_BATCH_SIZE",
		"QDRANT_URL", "QDRANT_COLLECTION", "QDRANT_VECTOR_SIZE",
		"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY",
		"MAX_TOKENS", "TOKEN_HISTORY_PADDING", "TOKEN_PROMPT_PADDING", "TOKEN_SAFETY_MARGIN", "MIN_RESPONSE_TOKENS",
		"DENSE_TOP_K", "KEYWORD_TOP_K", "RETRIEVAL_DENSE_WEIGHT", "RETRIEVAL_KEYWORD_WEIGHT",
		"SESSION_STORE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SESSION_TTL",
		"API_PORT",
		"EXTRACT_BASE_URLS", "EXTRACT_URL_PREFIX", "EXTRACT_CLASS", "EXTRACT_EXCLUDE_CLASSES", "EXTRACT_TITLE_SUFFIX",
		"EXTRACT_INITIAL_WAIT", "EXTRACT_SCROLL_PAUSE", "EXTRACT_SCROLL_STEP", "EXTRACT_MAX_SCROLLS",
		"EXTRACT_CONCURRENCY", "EXTRACT_FETCH_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "data", "test.db"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxTokens != 8192 {
		t.Errorf("MaxTokens = %d, want 8192", cfg.MaxTokens)
	}
	if cfg.TokenSafetyMargin != 500 {
		t.Errorf("TokenSafetyMargin = %d, want 500", cfg.TokenSafetyMargin)
	}
	if cfg.KeywordTopK != 5 {
		t.Errorf("KeywordTopK = %d, want 5", cfg.KeywordTopK)
	}
	if cfg.DenseWeight != 0.7 || cfg.KeywordWeight != 0.3 {
		t.Errorf("weights = %v/%v, want 0.7/0.3", cfg.DenseWeight, cfg.KeywordWeight)
	}
	if cfg.FileExtension != ".md" {
		t.Errorf("FileExtension = %q, want .md", cfg.FileExtension)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.SessionStore != "memory" {
		t.Errorf("SessionStore = %q, want memory", cfg.SessionStore)
	}
	if cfg.Extract.ContentClass != "artText" {
		t.Errorf("Extract.ContentClass = %q, want artText", cfg.Extract.ContentClass)
	}
	if len(cfg.Extract.ExcludeClasses) != 2 || cfg.Extract.ExcludeClasses[0] != "growfast_widget custom_ad" {
		t.Errorf("Extract.ExcludeClasses = %v", cfg.Extract.ExcludeClasses)
	}
	if cfg.Extract.ScrollPause != 2*time.Second {
		t.Errorf("Extract.ScrollPause = %v, want 2s", cfg.Extract.ScrollPause)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name: "overrides",
			env: map[string]string{
				"MAX_TOKENS":              "4096",
				"LOG_LEVEL":               "debug",
				"SESSION_STORE":           "Redis",
				"SESSION_TTL":             "90m",
				"EXTRACT_BASE_URLS":       "https://a.example/x, ,https://b.example/y",
				"EXTRACT_EXCLUDE_CLASSES": "ad",
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.MaxTokens != 4096 {
					t.Errorf("MaxTokens = %d, want 4096", cfg.MaxTokens)
				}
				if cfg.LogLevel != slog.LevelDebug {
					t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
				}
				if cfg.SessionStore != "redis" {
					t.Errorf("SessionStore = %q, want redis", cfg.SessionStore)
				}
				if cfg.SessionTTL != 90*time.Minute {
					t.Errorf("SessionTTL = %v, want 90m", cfg.SessionTTL)
				}
				if len(cfg.Extract.BaseURLs) != 2 || cfg.Extract.BaseURLs[1] != "https://b.example/y" {
					t.Errorf("BaseURLs = %v", cfg.Extract.BaseURLs)
				}
				if len(cfg.Extract.ExcludeClasses) != 1 {
					t.Errorf("ExcludeClasses = %v", cfg.Extract.ExcludeClasses)
				}
			},
		},
		{
			name:    "invalid integer",
			env:     map[string]string{"MAX_CHUNK_TOKENS": "many"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"EXTRACT_SCROLL_PAUSE": "soon"},
			wantErr: true,
		},
		{
			name:    "invalid float",
			env:     map[string]string{"RETRIEVAL_DENSE_WEIGHT": "heavy"},
			wantErr: true,
		},
		{
			name:    "zero vector size",
			env:     map[string]string{"QDRANT_VECTOR_SIZE": "0"},
			wantErr: true,
		},
		{
			name:    "safety margin above budget",
			env:     map[string]string{"MAX_TOKENS": "400"},
			wantErr: true,
		},
		{
			name:    "unknown session store",
			env:     map[string]string{"SESSION_STORE": "postgres"},
			wantErr: true,
		},
		{
			name:    "extension without dot",
			env:     map[string]string{"FILE_EXTENSION": "md"},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"LOG_LEVEL": "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil {
				tt.checkConfig(t, cfg)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " a ,b,, c")
	got := getEnvList("TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("getEnvList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("getEnvList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	t.Setenv("TEST_LIST", "")
	if got := getEnvList("TEST_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvList() default = %v, want [x]", got)
	}
}
