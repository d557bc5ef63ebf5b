package cache

import (
	"context"
	"log/slog"
	"time"

	"student-rag/internal/embeddings"
)

// CachingEmbedder wraps an Embedder with a Cache. Cache failures are logged
// and never fail an Embed call.
type CachingEmbedder struct {
	inner embeddings.Embedder
	cache Cache
	model string
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachingEmbedder returns inner decorated with c. model namespaces keys so
// vectors from different models never mix.
func NewCachingEmbedder(inner embeddings.Embedder, c Cache, model string, ttl time.Duration, log *slog.Logger) *CachingEmbedder {
	if log == nil {
		log = slog.Default()
	}
	return &CachingEmbedder{inner: inner, cache: c, model: model, ttl: ttl, log: log}
}

func (e *CachingEmbedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	key := Key(e.model, text)
	vec, err := e.cache.GetEmbedding(ctx, key)
	if err != nil {
		e.log.Warn("embedding cache read failed", "err", err)
	} else if vec != nil {
		e.log.Debug("embedding cache hit", "model", e.model)
		return vec, nil
	}

	vec, err = e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.SetEmbedding(ctx, key, vec, e.ttl); err != nil {
		e.log.Warn("embedding cache write failed", "err", err)
	}
	return vec, nil
}
