package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/dechat/pkg/history"
	"github.com/papercomputeco/dechat/pkg/sqlrunner"
)

const safetyBlockMessage = "Safety Block: Only SELECT queries are allowed."

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleListChats returns every conversation, most recent first.
func (s *Server) handleListChats(c *fiber.Ctx) error {
	chats, err := s.store.Chats(c.Context())
	if err != nil {
		s.logger.Error("failed to list chats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list chats"})
	}

	return c.JSON(chats)
}

// handleGetChat returns the messages of one conversation.
func (s *Server) handleGetChat(c *fiber.Ctx) error {
	id := c.Params("id")

	msgs, err := s.store.Messages(c.Context(), id)
	if err != nil {
		return s.historyError(c, err)
	}

	return c.JSON(ChatHistoryResponse{ChatID: id, Messages: msgs})
}

// handleDeleteChat removes a conversation.
func (s *Server) handleDeleteChat(c *fiber.Ctx) error {
	if err := s.store.Delete(c.Context(), c.Params("id")); err != nil {
		return s.historyError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) historyError(c *fiber.Ctx, err error) error {
	var notFound history.ErrNotFound
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
	}

	s.logger.Error("history lookup failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "history lookup failed"})
}

// handleRunSQL executes a read-only query against the warehouse. Query
// failures are reported in the body with a 200 so clients can offer a fix.
func (s *Server) handleRunSQL(c *fiber.Ctx) error {
	var req RunSQLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if s.warehouse == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no warehouse configured"})
	}

	result, err := s.warehouse.Run(c.Context(), req.Query)
	switch {
	case errors.Is(err, sqlrunner.ErrForbiddenStatement):
		return c.JSON(RunSQLResponse{Error: safetyBlockMessage})
	case err != nil:
		s.logger.Debug("query failed", "error", err)
		return c.JSON(RunSQLResponse{Error: err.Error()})
	}

	return c.JSON(RunSQLResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		Message:   result.Message,
		Truncated: result.Truncated,
	})
}

// handleFixSQL asks the model to repair a failed query using the schema.
func (s *Server) handleFixSQL(c *fiber.Ctx) error {
	var req FixSQLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}

	if s.llm == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no model configured"})
	}

	var fixed []byte
	err := s.llm.ChatStream(c.Context(), fixSystemPrompt(s.schema(c)), fixUserPrompt(req.Query, req.Error), func(token string) error {
		fixed = append(fixed, token...)
		return nil
	})
	if err != nil {
		s.logger.Error("fix-sql model call failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "model request failed"})
	}

	return c.JSON(FixSQLResponse{FixedQuery: stripFences(string(fixed))})
}

// handleRender converts a Markdown reply to highlighted HTML for web clients.
func (s *Server) handleRender(c *fiber.Ctx) error {
	var req RenderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	out, err := s.html.Render(req.Markdown)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(RenderResponse{HTML: out})
}

func (s *Server) schema(c *fiber.Ctx) string {
	if s.warehouse == nil {
		return "(Schema unavailable)"
	}
	return s.warehouse.SchemaContext(c.Context())
}
