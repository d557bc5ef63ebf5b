package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"

	"student-rag/internal/cache"
	"student-rag/internal/config"
	"student-rag/internal/embeddings"
	"student-rag/internal/logger"
	"student-rag/internal/store"
)

// Deps bundles the runtime dependencies of one run.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Embedder embeddings.Embedder
	Cache    cache.Cache
	Store    *store.Client

	closers []io.Closer
}

// Build loads the env file and config, then constructs the shared components.
// It does not touch any collection.
func Build(envFile string) (Deps, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("run_id", uuid.NewString())
	return BuildWith(cfg, log)
}

// BuildWith constructs dependencies from an already loaded config.
func BuildWith(cfg config.Config, log *slog.Logger) (Deps, error) {
	c := buildCache(cfg, log)
	embedder, model, err := buildEmbedder(cfg, log)
	if err != nil {
		_ = c.Close()
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	closers := []io.Closer{c}
	if closer, ok := embedder.(io.Closer); ok {
		closers = append(closers, closer)
	}
	if _, noop := c.(*cache.NoOpCache); !noop {
		ttl := time.Duration(cfg.CacheTTL) * time.Second
		embedder = cache.NewCachingEmbedder(embedder, c, model, ttl, log)
	}
	return Deps{
		Config:   cfg,
		Log:      log,
		Embedder: embedder,
		Cache:    c,
		Store:    store.NewClient(log),
		closers:  closers,
	}, nil
}

// Close releases the cache connection and any local model session.
func (d Deps) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// buildCache falls back to the no-op cache when Redis is unreachable; the
// cache only saves embedding calls and is never required.
func buildCache(cfg config.Config, log *slog.Logger) cache.Cache {
	switch cfg.CacheProvider {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, embedding cache disabled", "addr", cfg.RedisAddr, "err", err)
			return cache.NewNoOpCache()
		}
		log.Info("using Redis embedding cache", "addr", cfg.RedisAddr)
		return rc
	default:
		return cache.NewNoOpCache()
	}
}

// buildEmbedder selects the embedding function bound to the collection. It
// returns the model name used to namespace cache keys.
func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, string, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, "", fmt.Errorf("%s is required when EMBEDDING_PROVIDER=openai", cfg.APIKeyName)
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
		return embedder, embedder.Model(), nil
	case "local", "":
		embedder, err := embeddings.NewLocalEmbedder(embeddings.LocalConfig{
			Model:    cfg.LocalEmbeddingModel,
			CacheDir: cfg.ModelCacheDir,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize local embedder: %w", err)
		}
		log.Info("using local embedder", "model", embedder.Model())
		return embedder, embedder.Model(), nil
	default:
		return nil, "", fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid options: openai, local)", cfg.EmbeddingProvider)
	}
}
