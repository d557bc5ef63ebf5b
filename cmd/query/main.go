package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"student-rag/internal/app"
	"student-rag/internal/config"
	"student-rag/internal/corpus"
	"student-rag/internal/store"
)

const (
	searchPrompt = "Search for a student by a quality or statement they've had/made: "
	revealPrompt = "Would you like to see everything %s wrote? y/n"
	farewell     = "Come again next time!"
)

var (
	ErrNameNotFound = errors.New("matched document has no name")
	ErrNoMatch      = errors.New("no document matched")
	errNoInput      = errors.New("no input")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// After the first signal a second one kills the process outright.
	context.AfterFunc(ctx, stop)

	deps, err := app.Build(config.DefaultEnvFile)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		stop()
		os.Exit(1)
	}

	err = run(ctx, deps, os.Stdin, os.Stdout)
	if cerr := deps.Close(); cerr != nil {
		deps.Log.Warn("failed to release resources", "err", cerr)
	}
	stop()
	if err != nil {
		deps.Log.Error("run failed", "err", err)
		os.Exit(1)
	}
}

// run reads every document, creates the collection, ingests, then serves one
// interactive query. Documents are read before the collection exists so a
// missing file stops the run without touching the store.
func run(ctx context.Context, deps app.Deps, in io.Reader, out io.Writer) error {
	sources, err := corpus.ParseSources(deps.Config.Documents)
	if err != nil {
		return fmt.Errorf("invalid DOCUMENTS: %w", err)
	}
	docs, err := corpus.Load(deps.Config.DocsDir, sources)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}

	col, err := deps.Store.CreateCollection(deps.Config.CollectionName, deps.Embedder)
	if err != nil {
		return err
	}
	if _, err := ingest(ctx, deps.Log, col, docs); err != nil {
		return err
	}
	return converse(ctx, deps, col, bufio.NewReader(in), out)
}

// ingest adds docs whose ids are not yet in the collection and returns the
// ids it added. Re-ingesting the same set is a no-op.
func ingest(ctx context.Context, log *slog.Logger, col store.Collection, docs []store.Document) ([]string, error) {
	var pending []store.Document
	for _, d := range docs {
		exists, err := col.Has(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", d.ID, err)
		}
		if exists {
			log.Info("document already ingested, skipping", "id", d.ID)
			continue
		}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	if err := col.Add(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to ingest documents: %w", err)
	}
	ids := make([]string, len(pending))
	for i, d := range pending {
		ids[i] = d.ID
	}
	log.Info("documents ingested", "collection", col.Name(), "added", len(ids), "total", col.Count())
	return ids, nil
}

func converse(ctx context.Context, deps app.Deps, col store.Collection, in *bufio.Reader, out io.Writer) error {
	question, err := prompt(ctx, in, out, searchPrompt)
	if err != nil {
		return fmt.Errorf("reading question: %w", err)
	}

	match, err := nearest(ctx, deps.Log, col, question, deps.Config.TopK)
	if err != nil {
		return err
	}
	name, err := deriveName(match)
	if err != nil {
		return fmt.Errorf("%w: %s", err, match.ID)
	}
	fmt.Fprintln(out, name)

	answer, err := prompt(ctx, in, out, fmt.Sprintf(revealPrompt, name))
	if err != nil && !errors.Is(err, errNoInput) {
		return fmt.Errorf("reading answer: %w", err)
	}
	if answer == "y" {
		fmt.Fprintln(out, match.Content)
	} else {
		fmt.Fprintln(out, farewell)
	}
	return nil
}

// nearest returns the closest document to question.
func nearest(ctx context.Context, log *slog.Logger, col store.Collection, question string, k int) (store.Result, error) {
	if k < 1 {
		k = 1
	}
	results, err := col.Query(ctx, []string{question}, k)
	if err != nil {
		return store.Result{}, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 || len(results[0]) == 0 {
		return store.Result{}, ErrNoMatch
	}
	for rank, r := range results[0] {
		log.Debug("match", "rank", rank, "id", r.ID, "distance", r.Distance)
	}
	return results[0][0], nil
}

// deriveName prefers the document's name metadata. Without it, the name is
// taken from whitespace-separated words 4 and 5 of the text ("Hi, my name is
// First Last ...").
func deriveName(r store.Result) (string, error) {
	if name := strings.TrimSpace(r.Metadata[store.MetaName]); name != "" {
		return name, nil
	}
	words := strings.Fields(r.Content)
	if len(words) < 6 {
		return "", ErrNameNotFound
	}
	return words[4] + " " + words[5], nil
}

type line struct {
	text string
	err  error
}

// prompt writes msg and reads one line, without its line ending. A final line
// without a newline is accepted; EOF with nothing read is errNoInput. The wait
// ends with ctx.Err() when ctx is cancelled; the pending read is abandoned.
func prompt(ctx context.Context, in *bufio.Reader, out io.Writer, msg string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(out, msg)

	read := make(chan line, 1)
	go func() {
		text, err := in.ReadString('\n')
		read <- line{text: text, err: err}
	}()

	var l line
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l = <-read:
	}
	if l.err != nil {
		if !errors.Is(l.err, io.EOF) {
			return "", l.err
		}
		if l.text == "" {
			return "", errNoInput
		}
	}
	return strings.TrimRight(l.text, "\r\n"), nil
}
