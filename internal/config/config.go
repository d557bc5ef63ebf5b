package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is the env file read when no other path is given.
const DefaultEnvFile = ".env"

var (
	ErrEnvFile       = errors.New("env file unavailable")
	ErrMissingAPIKey = errors.New("api key missing from env file")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds runtime configuration. Values come from the process environment,
// falling back to the env file, then to the defaults below.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`

	// Embeddings
	EmbeddingProvider   string `env:"EMBEDDING_PROVIDER" envDefault:"openai" validate:"oneof=openai local"` // "openai" (remote API) or "local" (bundled model)
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small" validate:"required"`
	LocalEmbeddingModel string `env:"LOCAL_EMBEDDING_MODEL" envDefault:"sentence-transformers/all-MiniLM-L6-v2" validate:"required"`
	ModelCacheDir       string `env:"MODEL_CACHE_DIR" envDefault:"local_cache"`
	APIKeyName          string `env:"API_KEY_NAME" envDefault:"OpenAI_APIkey" validate:"required"`

	// OpenAIKey is read from the env file only, under APIKeyName.
	OpenAIKey string

	// Collection & documents
	CollectionName string   `env:"COLLECTION_NAME" envDefault:"Student_Profiles" validate:"required"`
	DocsDir        string   `env:"DOCS_DIR" envDefault:"RAG-Project-Database-Files"`
	Documents      []string `env:"DOCUMENTS" envSeparator:","` // "id=path" pairs; empty means the built-in list
	TopK           int      `env:"TOP_K" envDefault:"1" validate:"min=1,max=20"`

	// Embedding cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none" validate:"oneof=none redis"`
	RedisAddr     string `env:"REDIS_ADDR" validate:"required_if=CacheProvider redis"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"86400" validate:"min=0"` // seconds
}

// Load reads the env file at path and builds the configuration. A missing
// file, or a missing key when the openai provider is selected, is an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	fileValues, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrEnvFile, path, err)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment(fileValues)}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.OpenAIKey = strings.TrimSpace(fileValues[cfg.APIKeyName])

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and provider requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.EmbeddingProvider == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("%w: %s is required when EMBEDDING_PROVIDER=openai", ErrMissingAPIKey, c.APIKeyName)
	}
	return nil
}

// environment overlays the process environment on top of the env file values.
func environment(fileValues map[string]string) map[string]string {
	merged := make(map[string]string, len(fileValues))
	for k, v := range fileValues {
		merged[k] = v
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	return merged
}
