package store

import (
	"context"
	"errors"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDuplicateID        = errors.New("duplicate document id")
	ErrEmptyDocuments     = errors.New("no documents to add")
	ErrInvalidQuery       = errors.New("invalid query")
)

// Metadata keys set by ingestion.
const (
	MetaName   = "name"
	MetaSource = "source"
)

// Document is one stored entry: its id, full text and optional metadata.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is a query match. Distance is 1 - Similarity (cosine).
type Result struct {
	Document
	Similarity float32
	Distance   float32
}

// Collection is a named set of embedded documents sharing one embedder.
type Collection interface {
	Name() string
	Count() int
	Has(ctx context.Context, id string) (bool, error)
	// Add embeds and stores docs. Ids must be unique within the batch and
	// not already present.
	Add(ctx context.Context, docs []Document) error
	// Query returns, for each text, up to n nearest documents, most similar first.
	Query(ctx context.Context, texts []string, n int) ([][]Result, error)
}
