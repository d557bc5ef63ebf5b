//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// DefaultLocalModel is the model used when no remote provider is configured.
const DefaultLocalModel = "sentence-transformers/all-MiniLM-L6-v2"

// ErrLocalNotAvailable is returned when the binary was built without cgo.
var ErrLocalNotAvailable = errors.New("local embeddings not available (built without cgo, use EMBEDDING_PROVIDER=openai)")

// LocalConfig configures the bundled ONNX embedding model.
type LocalConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// LocalEmbedder is a stub for non-cgo builds.
type LocalEmbedder struct{}

// NewLocalEmbedder always fails without cgo.
func NewLocalEmbedder(_ LocalConfig) (*LocalEmbedder, error) {
	return nil, ErrLocalNotAvailable
}

func (e *LocalEmbedder) Model() string { return DefaultLocalModel }

func (e *LocalEmbedder) Embed(_ context.Context, _ string) (Vector, error) {
	return nil, ErrLocalNotAvailable
}

func (e *LocalEmbedder) Close() error { return nil }
