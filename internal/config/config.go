// Package config provides file-based configuration for civic.
// Configuration is loaded with a layered precedence: defaults, then the config
// file, then env vars. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CIVIC_CONFIG environment variable
//  3. ~/.civic/config.yaml, then ~/.civic/config.toml
//  4. ./civic.yaml, then ./civic.toml
//
// Files ending in .toml are parsed as TOML, everything else as YAML.
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
// Field names mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider used by the assistant.
	Model ModelConfig `yaml:"model" toml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`

	// Index configures the vector store backing the index.
	Index IndexConfig `yaml:"index" toml:"index"`

	// Data configures the corpus location.
	Data DataConfig `yaml:"data" toml:"data"`

	// Classifier configures domain classification.
	Classifier ClassifierConfig `yaml:"classifier" toml:"classifier"`

	// Web configures the council website cache.
	Web WebConfig `yaml:"web" toml:"web"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// History configures conversation history persistence.
	History HistoryConfig `yaml:"history" toml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider" toml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens"`

	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32 `yaml:"temperature" toml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama" toml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai" toml:"openai"`
	Azure  AzureConfig  `yaml:"azure" toml:"azure"`
	Ark    ArkConfig    `yaml:"ark" toml:"ark"`
	Gemini GeminiConfig `yaml:"gemini" toml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host" toml:"host"`
	Model string `yaml:"model" toml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Deployment string `yaml:"deployment" toml:"deployment"`
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, gemini, hash).
	Provider string `yaml:"provider" toml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" toml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions" toml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// IndexConfig selects and configures the vector store.
type IndexConfig struct {
	// Backend is one of memory, sqlite, qdrant, pgvector.
	Backend string `yaml:"backend" toml:"backend"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	// TopK is the default number of results per search.
	TopK int `yaml:"top_k" toml:"top_k"`

	Qdrant   QdrantConfig   `yaml:"qdrant" toml:"qdrant"`
	PgVector PgVectorConfig `yaml:"pgvector" toml:"pgvector"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	Collection string `yaml:"collection" toml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	TLS    bool   `yaml:"tls" toml:"tls"`
}

// PgVectorConfig holds PostgreSQL + pgvector settings.
type PgVectorConfig struct {
	// DSN is the connection string. Prefer env var PGVECTOR_DSN.
	DSN   string `yaml:"dsn" toml:"dsn"`
	Table string `yaml:"table" toml:"table"`
}

// DataConfig locates the corpus.
type DataConfig struct {
	// Dir holds .txt documents and .json / .db structured sources.
	Dir string `yaml:"dir" toml:"dir"`
}

// ClassifierConfig configures domain classification.
type ClassifierConfig struct {
	// Mode is keyword or embedding.
	Mode string `yaml:"mode" toml:"mode"`
	// Vocabulary is an optional path to a vocabulary YAML file that replaces
	// the embedded default.
	Vocabulary string `yaml:"vocabulary" toml:"vocabulary"`
}

// WebConfig configures the council website cache.
type WebConfig struct {
	// BaseURL overrides the base URL from the vocabulary.
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// TTL is a Go duration string, e.g. "6h".
	TTL string `yaml:"ttl" toml:"ttl"`
	// CacheDB is the bbolt file used to persist cache snapshots.
	CacheDB string `yaml:"cache_db" toml:"cache_db"`
	// Disabled turns off all website fetches.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var CIVIC_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// RateLimitRPS is the sustained per-IP request rate.
	RateLimitRPS float32 `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	// RateLimitBurst is the per-IP burst size.
	RateLimitBurst int `yaml:"rate_limit_burst" toml:"rate_limit_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format" toml:"format"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path" toml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	PublicKey string `yaml:"public_key" toml:"public_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Host      string `yaml:"host" toml:"host"`
}

// envMapping maps config fields to their corresponding env var names.
// Only non-empty file values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"CIVIC_VECTOR_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"CIVIC_INDEX_DB", func(c *Config) string { return c.Index.SQLitePath }},
	{"CIVIC_TOP_K", func(c *Config) string { return intStr(c.Index.TopK) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Index.Qdrant.TLS) }},
	{"PGVECTOR_DSN", func(c *Config) string { return c.Index.PgVector.DSN }},
	{"PGVECTOR_TABLE", func(c *Config) string { return c.Index.PgVector.Table }},
	{"CIVIC_DATA_DIR", func(c *Config) string { return c.Data.Dir }},
	{"CIVIC_CLASSIFIER_MODE", func(c *Config) string { return c.Classifier.Mode }},
	{"CIVIC_VOCABULARY", func(c *Config) string { return c.Classifier.Vocabulary }},
	{"CIVIC_WEB_BASE_URL", func(c *Config) string { return c.Web.BaseURL }},
	{"CIVIC_WEB_TTL", func(c *Config) string { return c.Web.TTL }},
	{"CIVIC_WEB_CACHE_DB", func(c *Config) string { return c.Web.CacheDB }},
	{"CIVIC_WEB_DISABLED", func(c *Config) string { return boolStr(c.Web.Disabled) }},
	{"CIVIC_HOST", func(c *Config) string { return c.Server.Host }},
	{"CIVIC_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"CIVIC_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"CIVIC_RATE_LIMIT_RPS", func(c *Config) string { return float32Str(c.Server.RateLimitRPS) }},
	{"CIVIC_RATE_LIMIT_BURST", func(c *Config) string { return intStr(c.Server.RateLimitBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"CIVIC_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		val := m.value(cfg)
		if val == "" || val == "0" || val == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		os.Setenv(m.envKey, val)
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// parseFile decodes path as TOML or YAML depending on its extension.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if exists(explicit) {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CIVIC_CONFIG"); envPath != "" && exists(envPath) {
		return envPath
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".civic", "config.yaml"),
			filepath.Join(home, ".civic", "config.toml"),
		)
	}
	candidates = append(candidates, "civic.yaml", "civic.toml")

	for _, p := range candidates {
		if exists(p) {
			return p
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
