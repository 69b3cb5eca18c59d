// Package inmemory implements history.Store with process memory.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/dechat/pkg/history"
)

type chat struct {
	messages  []history.Message
	createdAt time.Time
	updatedAt time.Time
}

// Store implements history.Store using an in-memory map.
type Store struct {
	// mu guards chats
	mu sync.RWMutex

	// chats is keyed by chat id
	chats map[string]*chat

	now func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		chats: make(map[string]*chat),
		now:   time.Now,
	}
}

func (s *Store) Append(_ context.Context, chatID string, msg history.Message) error {
	if chatID == "" {
		return errors.New("cannot append to empty chat id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	c, ok := s.chats[chatID]
	if !ok {
		c = &chat{createdAt: now}
		s.chats[chatID] = c
	}

	c.messages = append(c.messages, msg)
	c.updatedAt = now

	return nil
}

func (s *Store) Messages(_ context.Context, chatID string) ([]history.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil, history.ErrNotFound{ChatID: chatID}
	}

	return slices.Clone(c.messages), nil
}

func (s *Store) Chats(_ context.Context) ([]history.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		id string
		c  *chat
	}

	entries := make([]entry, 0, len(s.chats))
	for id, c := range s.chats {
		entries = append(entries, entry{id: id, c: c})
	}

	// Newest activity first; ties broken by id for a stable listing.
	slices.SortFunc(entries, func(a, b entry) int {
		if cmp := b.c.updatedAt.Compare(a.c.updatedAt); cmp != 0 {
			return cmp
		}
		if a.id < b.id {
			return -1
		}
		if a.id > b.id {
			return 1
		}
		return 0
	})

	out := make([]history.Chat, 0, len(entries))
	for _, e := range entries {
		out = append(out, history.Chat{
			ID:           e.id,
			Title:        history.Title(e.id),
			MessageCount: len(e.c.messages),
			UpdatedAt:    e.c.updatedAt,
		})
	}

	return out, nil
}

func (s *Store) Delete(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return history.ErrNotFound{ChatID: chatID}
	}

	delete(s.chats, chatID)
	return nil
}

func (s *Store) Close() error {
	return nil
}
