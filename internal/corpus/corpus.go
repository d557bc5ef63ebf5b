// Package corpus lists the documents to ingest and reads them from disk.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ledongthuc/pdf"

	"student-rag/internal/store"
)

var (
	ErrDuplicateSource = errors.New("duplicate source id")
	ErrInvalidSource   = errors.New("invalid source")
	ErrNoPDFText       = errors.New("pdf has no extractable text")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Source names one document: a fixed id, a path relative to the documents
// directory, and optionally the name of the person it describes.
type Source struct {
	ID   string `validate:"required"`
	Path string `validate:"required"`
	Name string
}

// DefaultSources is the built-in student profile set.
var DefaultSources = []Source{
	{ID: "students1", Path: "Brian_Light.md", Name: "Brian Light"},
	{ID: "students2", Path: "Ava_Hatestring.md", Name: "Ava Hatestring"},
	{ID: "students3", Path: "Arya_Arupathy.md", Name: "Arya Arupathy"},
	{ID: "students4", Path: "Demetrius_Obole.md", Name: "Demetrius Obole"},
}

// ParseSources turns "id=path" entries into sources. An empty list yields
// DefaultSources.
func ParseSources(entries []string) ([]Source, error) {
	if len(entries) == 0 {
		return DefaultSources, nil
	}
	sources := make([]Source, 0, len(entries))
	for _, e := range entries {
		id, path, ok := strings.Cut(strings.TrimSpace(e), "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not id=path", ErrInvalidSource, e)
		}
		sources = append(sources, Source{ID: strings.TrimSpace(id), Path: strings.TrimSpace(path)})
	}
	if err := Validate(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// Validate checks every source and rejects repeated ids.
func Validate(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("%w at index %d: %w", ErrInvalidSource, i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Load reads every source under dir. It reads all files before returning so
// that a missing file fails the run before anything touches the store.
func Load(dir string, sources []Source) ([]store.Document, error) {
	if err := Validate(sources); err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(sources))
	for _, s := range sources {
		path := s.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		text, err := readText(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s (%s): %w", s.ID, path, err)
		}
		meta := map[string]string{store.MetaSource: s.Path}
		if s.Name != "" {
			meta[store.MetaName] = s.Name
		}
		docs = append(docs, store.Document{ID: s.ID, Content: text, Metadata: meta})
	}
	return docs, nil
}

// readText returns the file's text. PDFs are extracted page by page; any
// other file is treated as plain text.
func readText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(content)
	}
	return string(content), nil
}

// extractPDF joins the text of every page, one page per line block. Fonts are
// parsed once per document. Pages without content or that fail to decode are
// skipped; a document that yields no text at all is ErrNoPDFText.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}

	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, r.NumPage())
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", ErrNoPDFText
	}
	return strings.Join(pages, "\n"), nil
}
