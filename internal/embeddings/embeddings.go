package embeddings

import (
	"context"
	"errors"
)

var (
	ErrEmptyInput     = errors.New("embeddings: empty input")
	ErrEmptyEmbedding = errors.New("embeddings: provider returned no vector")
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder maps text to a vector. The same embedder is used for stored
// documents and for queries.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
}
