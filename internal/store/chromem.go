package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"student-rag/internal/embeddings"
)

// Client is an in-process vector database. Nothing is persisted; all
// collections are gone when the process exits.
type Client struct {
	db  *chromem.DB
	log *slog.Logger
}

// NewClient creates an empty in-memory database.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{db: chromem.NewDB(), log: log}
}

// CreateCollection creates a new collection bound to embedder for its
// lifetime. It fails with ErrCollectionExists if the name is taken.
func (c *Client) CreateCollection(name string, embedder embeddings.Embedder) (*ChromemCollection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required for collection %s", name)
	}
	if _, ok := c.db.ListCollections()[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	col, err := c.db.CreateCollection(name, nil, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	c.log.Debug("collection created", "collection", name)
	return &ChromemCollection{
		col: col,
		log: c.log.With("collection", name),
		ids: make(map[string]struct{}),
	}, nil
}

// DeleteCollection drops a collection and its documents.
func (c *Client) DeleteCollection(name string) error {
	if _, ok := c.db.ListCollections()[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c.db.DeleteCollection(name)
}

func embeddingFunc(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return []float32(vec), nil
	}
}

// ChromemCollection implements Collection on a chromem-go collection.
type ChromemCollection struct {
	col *chromem.Collection
	log *slog.Logger

	mu  sync.RWMutex
	ids map[string]struct{}
}

var _ Collection = (*ChromemCollection)(nil)

func (c *ChromemCollection) Name() string {
	return c.col.Name
}

func (c *ChromemCollection) Count() int {
	return c.col.Count()
}

func (c *ChromemCollection) Has(_ context.Context, id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok, nil
}

func (c *ChromemCollection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	batch := make([]chromem.Document, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document at index %d has no id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: %s appears twice in batch", ErrDuplicateID, d.ID)
		}
		if _, exists := c.ids[d.ID]; exists {
			return fmt.Errorf("%w: %s already in collection", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = struct{}{}
		batch = append(batch, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}

	// Concurrency 1 bounds in-flight embedding calls to one; chromem still
	// schedules them in no particular order.
	if err := c.col.AddDocuments(ctx, batch, 1); err != nil {
		// Documents embedded before the failure are already stored. Drop the
		// whole batch so Count and Has keep agreeing.
		ids := make([]string, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		if derr := c.col.Delete(context.WithoutCancel(ctx), nil, nil, ids...); derr != nil {
			return errors.Join(fmt.Errorf("adding documents: %w", err), fmt.Errorf("rolling back batch: %w", derr))
		}
		c.log.Debug("batch rolled back", "count", len(ids), "err", err)
		return fmt.Errorf("adding documents: %w", err)
	}
	for id := range seen {
		c.ids[id] = struct{}{}
	}
	c.log.Debug("documents added", "count", len(batch))
	return nil
}

func (c *ChromemCollection) Query(ctx context.Context, texts []string, n int) ([][]Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidQuery, n)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no query texts", ErrInvalidQuery)
	}

	count := c.col.Count()
	// chromem requires nResults <= document count.
	k := min(n, count)

	out := make([][]Result, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: query text %d is empty", ErrInvalidQuery, i)
		}
		if count == 0 {
			out[i] = []Result{}
			continue
		}
		matches, err := c.col.Query(ctx, text, k, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("querying collection %s: %w", c.col.Name, err)
		}
		results := make([]Result, len(matches))
		for j, m := range matches {
			results[j] = Result{
				Document: Document{
					ID:       m.ID,
					Content:  m.Content,
					Metadata: m.Metadata,
				},
				Similarity: m.Similarity,
				Distance:   1 - m.Similarity,
			}
		}
		out[i] = results
	}
	c.log.Debug("query complete", "queries", len(texts), "k", k)
	return out, nil
}
