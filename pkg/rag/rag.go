// Package rag retrieves knowledge documents (runbooks, team conventions)
// relevant to a chat message and ingests them into a vector store.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/papercomputeco/dechat/pkg/embeddings"
	"github.com/papercomputeco/dechat/pkg/vector"
)

// DefaultTopK is how many documents are retrieved per message.
const DefaultTopK = 2

const chunkSeparator = "\n\n---\n\n"

// Retriever implements router.Retriever on top of an embedder and a vector
// store.
type Retriever struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	topK     int
	logger   *slog.Logger
}

// NewRetriever returns a Retriever returning up to topK documents
// (DefaultTopK when topK <= 0).
func NewRetriever(embedder embeddings.Embedder, driver vector.Driver, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		driver:   driver,
		topK:     topK,
		logger:   logger,
	}
}

// Search returns up to topK documents nearest to query, most similar
// first. topK <= 0 uses the retriever's default.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = r.topK
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.driver.Query(ctx, emb, topK)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge: %w", err)
	}

	return results, nil
}

// Retrieve returns the nearest documents formatted as "[Source: ...]"
// blocks separated by horizontal rules, or "" when nothing is stored.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	results, err := r.Search(ctx, query, r.topK)
	if err != nil {
		return "", err
	}

	chunks := make([]string, 0, len(results))
	for _, res := range results {
		src := res.Source
		if src == "" {
			src = "docs"
		}
		chunks = append(chunks, fmt.Sprintf("[Source: %s]\n%s", src, res.Content))
	}

	r.logger.Debug("retrieved knowledge", "documents", len(chunks))

	return strings.Join(chunks, chunkSeparator), nil
}

// Ingester embeds Markdown documents into a vector store.
type Ingester struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *slog.Logger
}

func NewIngester(embedder embeddings.Embedder, driver vector.Driver, logger *slog.Logger) *Ingester {
	return &Ingester{embedder: embedder, driver: driver, logger: logger}
}

// ingestBatchSize is how many documents are embedded per request when the
// embedder supports batches.
const ingestBatchSize = 16

// IngestPaths ingests every path. Directories contribute their *.md files
// (not recursive) in name order. Documents are keyed by absolute path, so
// re-ingesting a file replaces it. Returns the number of documents stored.
func (in *Ingester) IngestPaths(ctx context.Context, paths []string) (int, error) {
	files, err := expand(paths)
	if err != nil {
		return 0, err
	}

	docs := make([]vector.Document, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return 0, fmt.Errorf("resolving %s: %w", f, err)
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", abs, err)
		}

		text := strings.ToValidUTF8(string(data), "")
		docs = append(docs, vector.Document{ID: abs, Source: abs, Content: text})
	}

	count := 0
	for batch := range slices.Chunk(docs, ingestBatchSize) {
		if err := in.embedAll(ctx, batch); err != nil {
			return count, err
		}

		if err := in.driver.Add(ctx, batch); err != nil {
			return count, fmt.Errorf("storing documents: %w", err)
		}

		for _, d := range batch {
			in.logger.Info("ingested document", "source", d.Source, "bytes", len(d.Content))
		}
		count += len(batch)
	}

	return count, nil
}

// embedAll fills in the embedding of every document, in one request when
// the embedder supports it.
func (in *Ingester) embedAll(ctx context.Context, docs []vector.Document) error {
	if be, ok := in.embedder.(embeddings.BatchEmbedder); ok {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}

		embs, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding %d documents: %w", len(docs), err)
		}
		for i := range docs {
			docs[i].Embedding = embs[i]
		}
		return nil
	}

	for i := range docs {
		emb, err := in.embedder.Embed(ctx, docs[i].Content)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", docs[i].Source, err)
		}
		docs[i].Embedding = emb
	}
	return nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		matches, err := filepath.Glob(filepath.Join(p, "*.md"))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", p, err)
		}
		slices.Sort(matches)
		files = append(files, matches...)
	}
	return files, nil
}
