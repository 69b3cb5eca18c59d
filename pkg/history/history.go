// Package history defines the conversation log kept by the dechat server.
package history

import (
	"context"
	"time"
)

// Roles of a Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"`

	// Scope is the routing label of an assistant turn. Empty for user turns.
	Scope string `json:"scope"`

	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat summarizes a conversation for listing.
type Chat struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists conversation messages keyed by chat id.
type Store interface {
	// Append adds msg to the end of the chat, creating the chat if needed.
	Append(ctx context.Context, chatID string, msg Message) error

	// Messages returns the chat's messages oldest first.
	// Returns ErrNotFound if the chat does not exist.
	Messages(ctx context.Context, chatID string) ([]Message, error)

	// Chats lists every chat, most recently updated first.
	Chats(ctx context.Context) ([]Chat, error)

	// Delete removes a chat. Returns ErrNotFound if the chat does not exist.
	Delete(ctx context.Context, chatID string) error

	// Close releases any resources held by the store.
	Close() error
}
