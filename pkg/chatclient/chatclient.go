// Package chatclient talks to a dechat server: it sends chat messages,
// decodes streamed replies, and wraps the history and SQL endpoints.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/dechat/api"
	"github.com/papercomputeco/dechat/pkg/history"
	"github.com/papercomputeco/dechat/pkg/reply"
)

// DefaultTarget is the default dechat server URL.
const DefaultTarget = "http://localhost:8090"

// Config configures a Client.
type Config struct {
	// Target is the server base URL. Defaults to DefaultTarget.
	Target string

	// Framing is passed to the reply decoder. Zero is auto.
	Framing reply.Framing

	// Timeout bounds requests that do not stream. Streamed replies are
	// bounded only by the caller's context.
	Timeout time.Duration
}

// Client is a dechat API client.
type Client struct {
	target  string
	framing reply.Framing
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// Conversation is the client side state of a chat. It is passed into and
// returned from Chat so callers own it explicitly.
type Conversation struct {
	ChatID string
	Scope  string
}

// Reply is a completed assistant reply.
type Reply struct {
	ChatID string
	Scope  string
	Body   string

	// Streamed is false for answers returned as a single JSON object.
	Streamed bool
}

// New creates a client.
func New(cfg Config, logger *slog.Logger) *Client {
	target := cfg.Target
	if target == "" {
		target = DefaultTarget
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		target:  strings.TrimRight(target, "/"),
		framing: cfg.Framing,
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

// Chat sends message in conv and returns the reply and the updated
// conversation. For streamed replies onUpdate, if non-nil, is called with
// the decoder state after every network read.
func (c *Client) Chat(ctx context.Context, conv Conversation, message string, onUpdate func(reply.Result)) (Reply, Conversation, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat", api.ChatRequest{Message: message, ChatID: conv.ChatID})
	if err != nil {
		return Reply{}, conv, err
	}
	defer resp.Body.Close()

	if isJSON(resp.Header.Get("Content-Type")) {
		return c.readJSONReply(resp.Body, conv)
	}

	r := reply.NewReader(resp.Body, reply.WithFraming(c.framing))

	var last reply.Result
	for {
		res, err := r.Next()
		if err != nil {
			return Reply{Body: last.Body}, conv, fmt.Errorf("reading reply: %w", err)
		}
		if res == nil {
			break
		}
		last = *res
		if onUpdate != nil {
			onUpdate(last)
		}
	}

	if last.Header != nil {
		if last.Header.ChatID != "" {
			conv.ChatID = last.Header.ChatID
		}
		conv.Scope = last.Header.Scope
	}

	c.logger.Debug("reply streamed",
		"chat_id", conv.ChatID,
		"scope", conv.Scope,
		"header", last.HeaderExtracted,
		"bytes", len(last.Body),
	)

	return Reply{ChatID: conv.ChatID, Scope: conv.Scope, Body: last.Body, Streamed: true}, conv, nil
}

// readJSONReply handles the fast path. The answer is the first non-empty
// of welcome_answer, answer and message; otherwise the raw JSON is shown.
func (c *Client) readJSONReply(body io.Reader, conv Conversation) (Reply, Conversation, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return Reply{}, conv, fmt.Errorf("reading reply: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Reply{Body: string(raw)}, conv, nil
	}

	if id, ok := fields["chat_id"].(string); ok && id != "" {
		conv.ChatID = id
	}
	if scope, ok := fields["scope"].(string); ok {
		conv.Scope = scope
	}

	answer := string(raw)
	for _, key := range []string{"welcome_answer", "answer", "message"} {
		if v, ok := fields[key].(string); ok && v != "" {
			answer = v
			break
		}
	}

	return Reply{ChatID: conv.ChatID, Scope: conv.Scope, Body: answer}, conv, nil
}

// Health returns nil when the server answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil)
}

// ListChats returns every conversation, most recent first.
func (c *Client) ListChats(ctx context.Context) ([]history.Chat, error) {
	var chats []history.Chat
	if err := c.getJSON(ctx, "/chats", &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat returns the messages of one conversation.
func (c *Client) GetChat(ctx context.Context, chatID string) ([]history.Message, error) {
	var out api.ChatHistoryResponse
	if err := c.getJSON(ctx, "/chats/"+url.PathEscape(chatID), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// DeleteChat removes a conversation.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodDelete, "/chats/"+url.PathEscape(chatID), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RunSQL executes a read-only query on the server's warehouse. Query
// errors reported by the server are returned as errors.
func (c *Client) RunSQL(ctx context.Context, query string) (*api.RunSQLResponse, error) {
	var out api.RunSQLResponse
	if err := c.postJSON(ctx, "/run-sql", api.RunSQLRequest{Query: query}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return &out, fmt.Errorf("%s", out.Error)
	}
	return &out, nil
}

// FixSQL asks the server to repair query given the error it produced.
func (c *Client) FixSQL(ctx context.Context, query, errMsg string) (string, error) {
	var out api.FixSQLResponse
	if err := c.postJSON(ctx, "/fix-sql", api.FixSQLRequest{Query: query, Error: errMsg}, &out); err != nil {
		return "", err
	}
	return out.FixedQuery, nil
}

// Search queries the server's knowledge base.
func (c *Client) Search(ctx context.Context, query string, topK int) (*api.SearchOutput, error) {
	q := url.Values{"query": {query}}
	if topK > 0 {
		q.Set("top_k", fmt.Sprint(topK))
	}

	var out api.SearchOutput
	if err := c.getJSON(ctx, "/v1/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp.Body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp.Body, out)
}

// do sends a request and returns the response for 2xx statuses. Any
// other status is read and returned as a *StatusError.
func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", c.target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}

	return resp, nil
}

func decode(r io.Reader, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
