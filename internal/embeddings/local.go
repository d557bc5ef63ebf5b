//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// DefaultLocalModel is the model used when no remote provider is configured.
const DefaultLocalModel = "sentence-transformers/all-MiniLM-L6-v2"

// LocalConfig configures the bundled ONNX embedding model.
type LocalConfig struct {
	// Model is a friendly model name, see localModels.
	Model string
	// CacheDir holds downloaded model files. Defaults to ./local_cache.
	CacheDir string
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

var localModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

// LocalEmbedder runs a fastembed model in-process.
type LocalEmbedder struct {
	model *fastembed.FlagEmbedding
	name  string
	mu    sync.Mutex
}

// NewLocalEmbedder loads (downloading on first use) the configured local model.
func NewLocalEmbedder(cfg LocalConfig) (*LocalEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLocalModel
	}
	model, ok := localModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unsupported local model %q", cfg.Model)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "local_cache"
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}
	showProgress := false
	fe, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}
	return &LocalEmbedder{model: fe, name: cfg.Model}, nil
}

// Model returns the friendly model name.
func (e *LocalEmbedder) Model() string {
	return e.name
}

// Embed uses the plain (unprefixed) embedding path for both documents and
// queries, so identical texts map to identical vectors.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.model.Embed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return Vector(out[0]), nil
}

// Close releases the ONNX session.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
