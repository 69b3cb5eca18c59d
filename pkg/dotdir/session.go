package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	sessionFile = "session.json"
)

// Session is the active conversation of the chat client. It is written
// after every reply that carries a chat id so "dechat chat" resumes the
// same conversation on the next run.
type Session struct {
	// ChatID is the backend conversation identifier.
	ChatID string `json:"chat_id"`

	// Scope is the routing label of the last reply, if any.
	Scope string `json:"scope,omitempty"`

	// UpdatedAt is when the session was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadSession loads the session from a target .dechat/session.json.
// Returns nil, nil if no session exists (new conversation).
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadSession(overrideDir string) (*Session, error) {
	file, err := m.path(overrideDir, sessionFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}

	if s.ChatID == "" {
		return nil, nil
	}

	return s, nil
}

// SaveSession persists the session to a target .dechat/session.json.
func (m *Manager) SaveSession(s *Session, overrideDir string) error {
	if s == nil {
		return errors.New("cannot save nil session")
	}

	file, err := m.path(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := os.WriteFile(file, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return nil
}

// ClearSession removes the session file so the next chat starts a new
// conversation. Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearSession(overrideDir string) error {
	file, err := m.path(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	if err := os.Remove(file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session: %w", err)
	}

	return nil
}
