// Package vector provides interfaces and implementations for storing and
// searching embedded knowledge documents (runbooks, conventions) used as
// retrieval context for chat replies.
package vector

import "context"

// Document represents a stored knowledge document with its embedding.
type Document struct {
	// ID is a unique, stable identifier for the document (typically its
	// absolute source path).
	ID string

	// Source names where the document came from. It is shown to the model
	// alongside the retrieved text.
	Source string

	// Content is the document text.
	Content string

	// Embedding is the vector representation of Content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of document embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
