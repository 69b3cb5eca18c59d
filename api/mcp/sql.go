package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/dechat/pkg/sqlrunner"
)

var (
	runSQLToolName    = "run_sql"
	runSQLDescription = "Run a read-only SELECT query against the dechat warehouse and return the rows keyed by column. Statements that modify data are refused."
)

// RunSQLInput represents the input arguments for the run_sql tool.
type RunSQLInput struct {
	Query string `json:"query" jsonschema:"a single read-only SQL query"`
}

// RunSQLOutput represents the output of the run_sql tool.
type RunSQLOutput struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Message   string           `json:"message,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
}

func (s *Server) handleRunSQL(ctx context.Context, _ *mcp.CallToolRequest, input RunSQLInput) (*mcp.CallToolResult, RunSQLOutput, error) {
	if input.Query == "" {
		return toolError("query is required"), RunSQLOutput{}, nil
	}

	result, err := s.config.Warehouse.Run(ctx, input.Query)
	switch {
	case errors.Is(err, sqlrunner.ErrForbiddenStatement):
		return toolError("Only SELECT queries are allowed."), RunSQLOutput{}, nil
	case err != nil:
		s.config.Logger.Debug("mcp query failed", "error", err)
		return toolError(fmt.Sprintf("Query failed: %v", err)), RunSQLOutput{}, nil
	}

	output := RunSQLOutput{
		Columns:   result.Columns,
		Rows:      result.Rows,
		Message:   result.Message,
		Truncated: result.Truncated,
	}
	if output.Columns == nil {
		output.Columns = []string{}
	}
	if output.Rows == nil {
		output.Rows = []map[string]any{}
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), RunSQLOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
