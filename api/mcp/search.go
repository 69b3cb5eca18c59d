package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/dechat/pkg/utils"
	"github.com/papercomputeco/dechat/pkg/vector"
)

const (
	defaultTopK = 5
	previewLen  = 200
)

var (
	searchToolName    = "search"
	searchDescription = "Search the ingested runbooks and data documentation using semantic search. Returns the most relevant documents with their source path and a preview of their content."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant documents"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchResult is one matched knowledge document.
type SearchResult struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
	Preview string  `json:"preview"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return toolError("query is required"), SearchOutput{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	logger.Debug("mcp search request", "query", input.Query, "top_k", topK)

	results, err := s.config.Searcher.Search(ctx, input.Query, topK)
	if err != nil {
		logger.Error("mcp search failed", "error", err)
		return toolError(fmt.Sprintf("Search failed: %v", err)), SearchOutput{}, nil
	}

	output := buildSearchOutput(input.Query, results)

	// Tools returning structured content also return it serialized as
	// text for clients that only read Content.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// buildSearchOutput converts vector matches into previews.
func buildSearchOutput(query string, results []vector.QueryResult) SearchOutput {
	out := SearchOutput{Query: query, Results: make([]SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResult{
			ID:      r.ID,
			Source:  r.Source,
			Score:   r.Score,
			Preview: utils.Truncate(r.Content, previewLen),
		})
	}
	out.Count = len(out.Results)
	return out
}
