package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/dechat/pkg/utils"
)

const (
	defaultSearchTopK = 5
	searchPreviewLen  = 200
)

// SearchResult is one knowledge document matched by GET /v1/search.
type SearchResult struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
	Preview string  `json:"preview"`
}

// SearchOutput is the response of GET /v1/search.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default 5): number of results to return
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	if s.config.Knowledge == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured: set rag.provider and ingest documents first",
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := defaultSearchTopK
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	results, err := s.config.Knowledge.Search(c.Context(), query, topK)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	out := SearchOutput{Query: query, Results: make([]SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResult{
			ID:      r.ID,
			Source:  r.Source,
			Score:   r.Score,
			Preview: utils.Truncate(r.Content, searchPreviewLen),
		})
	}
	out.Count = len(out.Results)

	return c.JSON(out)
}
