// Package session keeps the chat history of each browser session.
package session

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks industryinsider/internal/session Store

import (
	"context"
	"sync"

	"industryinsider/internal/prompts"
)

// Store holds one message history per session ID.
type Store interface {
	// History returns the session's messages, creating an empty history on first access.
	History(ctx context.Context, id string) ([]prompts.Message, error)
	// Save replaces the session's messages.
	Save(ctx context.Context, id string, msgs []prompts.Message) error
	// Clear empties the session's history.
	Clear(ctx context.Context, id string) error
}

// MemoryStore keeps histories in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]prompts.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]prompts.Message)}
}

// History returns a copy of the session's messages.
func (s *MemoryStore) History(_ context.Context, id string) ([]prompts.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.sessions[id]
	if !ok {
		msgs = []prompts.Message{}
		s.sessions[id] = msgs
	}
	out := make([]prompts.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Save stores a copy of msgs.
func (s *MemoryStore) Save(_ context.Context, id string, msgs []prompts.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append([]prompts.Message{}, msgs...)
	return nil
}

// Clear empties the history but keeps the session.
func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = []prompts.Message{}
	return nil
}
