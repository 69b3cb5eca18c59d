package api

import "github.com/papercomputeco/dechat/pkg/history"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`

	// ChatID continues an existing conversation. Empty or malformed ids
	// start a new one.
	ChatID string `json:"chat_id,omitempty"`
}

// ChatResponse is returned for messages answered without the model.
type ChatResponse struct {
	ChatID string `json:"chat_id"`
	Scope  string `json:"scope"`
	Answer string `json:"answer"`
}

// StreamHeader is the JSON object that leads a streamed reply.
type StreamHeader struct {
	ChatID string `json:"chat_id"`
	Scope  string `json:"scope"`
}

// ChatHistoryResponse is returned by GET /chats/:id.
type ChatHistoryResponse struct {
	ChatID   string            `json:"chat_id"`
	Messages []history.Message `json:"messages"`
}

// RunSQLRequest is the body of POST /run-sql.
type RunSQLRequest struct {
	Query string `json:"query"`
}

// RunSQLResponse carries either a result set, a message, or an error.
type RunSQLResponse struct {
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	Message   string           `json:"message,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// FixSQLRequest is the body of POST /fix-sql.
type FixSQLRequest struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// FixSQLResponse is returned by POST /fix-sql.
type FixSQLResponse struct {
	FixedQuery string `json:"fixed_query"`
}

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	Markdown string `json:"markdown"`
}

// RenderResponse is returned by POST /render.
type RenderResponse struct {
	HTML string `json:"html"`
}
