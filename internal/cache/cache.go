package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"student-rag/internal/embeddings"
)

// Cache stores embedding vectors so identical texts are not re-embedded
// across runs. Only vectors are cached; the collection is never persisted.
type Cache interface {
	// GetEmbedding returns the cached vector for key, or nil on a miss.
	GetEmbedding(ctx context.Context, key string) (embeddings.Vector, error)

	// SetEmbedding stores a vector with TTL (0 means no expiry).
	SetEmbedding(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Key derives the cache key for text embedded by model.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
