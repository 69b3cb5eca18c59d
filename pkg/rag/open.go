package rag

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/dechat/pkg/embeddings"
	embeddingsollama "github.com/papercomputeco/dechat/pkg/embeddings/ollama"
	"github.com/papercomputeco/dechat/pkg/vector"
	vectorutils "github.com/papercomputeco/dechat/pkg/vector/utils"
)

// ErrDisabled is returned by Open when no vector store provider is set.
var ErrDisabled = errors.New("knowledge retrieval is disabled (rag.provider is empty)")

// Options selects the embedder and vector store backing retrieval.
type Options struct {
	// Provider is the vector store: "sqlite" or "chroma".
	Provider string

	// Target is the sqlite-vec database path or the Chroma URL.
	Target string

	// OllamaURL serves the embedding model.
	OllamaURL      string
	EmbeddingModel string
	Dimensions     uint

	// TopK is how many documents Retrieve returns. Defaults to DefaultTopK.
	TopK int

	Logger *slog.Logger
}

// Stack is an opened embedder and vector store pair.
type Stack struct {
	Embedder  embeddings.Embedder
	Driver    vector.Driver
	Retriever *Retriever
	Ingester  *Ingester
}

// Open builds the retrieval stack described by o.
func Open(o Options) (*Stack, error) {
	if o.Provider == "" {
		return nil, ErrDisabled
	}

	embedder, err := embeddingsollama.NewEmbedder(embeddingsollama.EmbedderConfig{
		BaseURL: o.OllamaURL,
		Model:   o.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: o.Provider,
		Target:       o.Target,
		Dimensions:   o.Dimensions,
		Logger:       o.Logger,
	})
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	o.Logger.Info("knowledge retrieval enabled",
		"provider", o.Provider,
		"target", o.Target,
		"embedding_model", o.EmbeddingModel,
	)

	return &Stack{
		Embedder:  embedder,
		Driver:    driver,
		Retriever: NewRetriever(embedder, driver, o.TopK, o.Logger),
		Ingester:  NewIngester(embedder, driver, o.Logger),
	}, nil
}

// Close releases the vector store and embedder.
func (s *Stack) Close() error {
	return errors.Join(s.Driver.Close(), s.Embedder.Close())
}
