package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/dechat/pkg/dbt"
	"github.com/papercomputeco/dechat/pkg/history"
	"github.com/papercomputeco/dechat/pkg/reply"
	"github.com/papercomputeco/dechat/pkg/router"
	"github.com/papercomputeco/dechat/pkg/worker"
)

// handleChat routes a user message. Direct scopes are answered with a
// ChatResponse; everything else streams a StreamHeader followed by the
// model's Markdown reply as text/plain.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	chatID := resolveChatID(req.ChatID)

	// The user turn is recorded before routing so it is visible to
	// GET /chats/:id even if the reply fails.
	if err := s.store.Append(c.Context(), chatID, history.Message{
		Role:    history.RoleUser,
		Content: req.Message,
	}); err != nil {
		s.logger.Error("failed to record user message", "chat_id", chatID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to record message"})
	}

	decision := s.router.Route(c.Context(), req.Message)

	s.logger.Debug("routed message",
		"chat_id", chatID,
		"scope", decision.Scope,
		"context_bytes", len(decision.Context),
	)

	if decision.Direct() {
		if err := s.store.Append(c.Context(), chatID, history.Message{
			Role:    history.RoleAssistant,
			Scope:   decision.Scope,
			Content: decision.Answer,
		}); err != nil {
			s.logger.Error("failed to record answer", "chat_id", chatID, "error", err)
		}

		return c.JSON(ChatResponse{ChatID: chatID, Scope: decision.Scope, Answer: decision.Answer})
	}

	if s.llm == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no model configured"})
	}

	header, err := s.encodeHeader(chatID, decision.Scope)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to encode reply header"})
	}

	system := chatSystemPrompt(s.schema(c), dbt.Context(s.config.DBTManifest))
	user := chatUserPrompt(req.Message, decision.Context)

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe + SetBodyStream streams each token to the client as it is
	// written; pw.Write blocks until fasthttp has consumed the chunk.
	pr, pw := io.Pipe()
	s.streams.Add(1)
	go func() {
		defer s.streams.Done()
		s.streamReply(pw, header, chatID, decision, system, user)
	}()

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamReply writes the header and the model tokens to pw, then hands the
// assembled reply to the history pool. The model request is cancelled when
// the server shuts down or the client stops reading.
func (s *Server) streamReply(pw *io.PipeWriter, header []byte, chatID string, decision router.Decision, system, user string) {
	defer pw.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	start := time.Now()

	if _, err := pw.Write(header); err != nil {
		s.logger.Debug("client went away before header", "chat_id", chatID, "error", err)
		return
	}

	var body strings.Builder
	err := s.llm.ChatStream(ctx, system, user, func(token string) error {
		body.WriteString(token)
		if _, werr := io.WriteString(pw, token); werr != nil {
			cancel()
			return werr
		}
		return nil
	})
	if err != nil {
		s.logger.Error("model stream failed",
			"chat_id", chatID,
			"scope", decision.Scope,
			"error", err,
		)
		notice := fmt.Sprintf("\n\n> ⚠️ The model stopped responding: %v\n", err)
		body.WriteString(notice)
		_, _ = io.WriteString(pw, notice)
	}

	s.pool.Enqueue(worker.Job{
		ChatID: chatID,
		Message: history.Message{
			Role:      history.RoleAssistant,
			Scope:     decision.Scope,
			Content:   body.String(),
			CreatedAt: time.Now().UTC(),
		},
	})

	s.logger.Info("reply streamed",
		"chat_id", chatID,
		"scope", decision.Scope,
		"bytes", body.Len(),
		"duration", time.Since(start).String(),
	)
}

// encodeHeader returns the JSON header, newline-terminated for line framing.
func (s *Server) encodeHeader(chatID, scope string) ([]byte, error) {
	b, err := json.Marshal(StreamHeader{ChatID: chatID, Scope: scope})
	if err != nil {
		return nil, err
	}
	if s.config.StreamFraming != reply.FramingEmbedded {
		b = append(b, '\n')
	}
	return b, nil
}

// resolveChatID keeps a well-formed uuid and allocates a new one otherwise.
func resolveChatID(raw string) string {
	if id, err := uuid.Parse(raw); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
