// Package api provides the dechat HTTP backend: chat routing and streaming,
// conversation history, and read-only warehouse queries.
package api

import (
	"context"

	"github.com/papercomputeco/dechat/pkg/reply"
	"github.com/papercomputeco/dechat/pkg/router"
	"github.com/papercomputeco/dechat/pkg/sqlrunner"
	"github.com/papercomputeco/dechat/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// StreamFraming selects how the reply header is delimited. FramingLine
	// terminates it with "\n"; FramingEmbedded writes the body directly
	// after the closing brace.
	StreamFraming reply.Framing

	// DBTManifest is the path to a dbt manifest.json used in prompts.
	DBTManifest string

	// Retriever supplies knowledge context to the router. Optional.
	Retriever router.Retriever

	// Knowledge backs GET /v1/search. Optional.
	Knowledge Searcher

	// NumWorkers is the number of history workers. Defaults to the pool default.
	NumWorkers uint
}

// LLM streams a completion token by token.
type LLM interface {
	ChatStream(ctx context.Context, system, user string, fn func(token string) error) error
}

// Warehouse runs read-only queries and describes its schema.
type Warehouse interface {
	Run(ctx context.Context, query string) (*sqlrunner.Result, error)
	SchemaContext(ctx context.Context) string
}

// Searcher finds knowledge documents similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]vector.QueryResult, error)
}
