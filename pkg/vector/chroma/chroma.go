// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/dechat/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for dechat knowledge documents.
	DefaultCollectionName = "de_knowledge"

	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// MaxRetries bounds attempts to reach Chroma while it starts up.
	MaxRetries int

	// RetryDelay is the first backoff delay; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver. It retries resolving the
// collection with exponential backoff since Chroma is often started
// alongside dechat.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		id, err := d.getOrCreateCollection(context.Background())
		if err == nil {
			d.collectionID = id
			logger.Info("connected to chroma",
				"url", c.URL,
				"collection", collectionName,
				"collection_id", id,
			)
			return d, nil
		}

		lastErr = err
		logger.Debug("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if attempt < maxRetries {
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}

	return nil, fmt.Errorf("%w: collection %q after %d attempts: %v",
		vector.ErrConnection, collectionName, maxRetries, lastErr)
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+collectionsPath+"/"+d.collectionName, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
		return collection.ID, nil
	}

	var collection chromaCollection
	err = d.post(ctx, collectionsPath, map[string]string{"name": d.collectionName}, &collection)
	if err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}

	return collection.ID, nil
}

// post sends body as JSON to path and decodes a 200/201 response into out
// (when out is non-nil).
func (d *Driver) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (d *Driver) collectionPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

// Add upserts documents with their embeddings, text and source metadata.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	reqBody := chromaAddRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		reqBody.IDs[i] = doc.ID
		reqBody.Embeddings[i] = doc.Embedding
		reqBody.Metadatas[i] = map[string]any{"source": doc.Source}
		reqBody.Documents[i] = doc.Content
	}

	if err := d.post(ctx, d.collectionPath("upsert"), reqBody, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "documents", "distances"},
	}

	var queryResp chromaQueryResponse
	if err := d.post(ctx, d.collectionPath("query"), reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	// Only one query embedding was sent, so only the first group is read.
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := queryResp.IDs[0]
	var (
		distances []float32
		metadatas []map[string]any
		documents []string
	)
	if len(queryResp.Distances) > 0 {
		distances = queryResp.Distances[0]
	}
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	results := make([]vector.QueryResult, 0, len(ids))
	for i, id := range ids {
		result := vector.QueryResult{
			Document: vector.Document{ID: id, Source: id},
		}

		if i < len(metadatas) && metadatas[i] != nil {
			if src, ok := metadatas[i]["source"].(string); ok && src != "" {
				result.Source = src
			}
		}
		if i < len(documents) {
			result.Content = documents[i]
		}
		if i < len(distances) {
			result.Score = 1.0 / (1.0 + distances[i])
		}

		results = append(results, result)
	}

	d.logger.Debug("queried chroma", "results", len(results))

	return results, nil
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+d.collectionPath("count"), nil)
	if err != nil {
		return 0, fmt.Errorf("creating count request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("failed to count documents: status %d: %s", resp.StatusCode, string(b))
	}

	var n int
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return n, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.post(ctx, d.collectionPath("delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "count", len(ids))

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}
