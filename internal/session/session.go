// Package session maps user identities to live conversation state, lazily
// seeded from the durable history store.
//
// Sessions are never evicted; they live until process teardown. With the
// current user base that is acceptable, but it is unbounded growth if the
// bot is ever installed broadly.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/quailyquaily/slackbard/db/models"
	"github.com/quailyquaily/slackbard/llm"
)

// Loader is the read side of the history store.
type Loader interface {
	Load(ctx context.Context, userID string) ([]models.Turn, error)
}

// Session holds one user's in-memory conversation transcript.
type Session struct {
	UserID string

	mu         sync.Mutex
	transcript []llm.Content
}

// Transcript returns a copy of the conversation so far, oldest-first,
// alternating user/model roles.
func (s *Session) Transcript() []llm.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Content(nil), s.transcript...)
}

// Push records a completed exchange.
func (s *Session) Push(userText, modelText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript,
		llm.Content{Role: llm.RoleUser, Text: userText},
		llm.Content{Role: llm.RoleModel, Text: modelText},
	)
}

// Cache is the process-wide session registry.
type Cache struct {
	mu       sync.Mutex
	sessions map[string]*Session
	loader   Loader
}

func NewCache(loader Loader) (*Cache, error) {
	if loader == nil {
		return nil, fmt.Errorf("history loader is required")
	}
	return &Cache{
		sessions: make(map[string]*Session),
		loader:   loader,
	}, nil
}

// Resolve returns the live session for userID, creating and seeding one
// from stored history on first use.
//
// Concurrent first resolves for the same user may each perform a load and
// seed their own session; the last store wins. That matches the source
// behavior and only costs a redundant load.
func (c *Cache) Resolve(ctx context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	c.mu.Lock()
	if s, ok := c.sessions[userID]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	turns, err := c.loader.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		UserID:     userID,
		transcript: flatten(turns),
	}

	c.mu.Lock()
	c.sessions[userID] = s
	c.mu.Unlock()
	return s, nil
}

// Len returns the number of resident sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// flatten interleaves stored turns into a role-alternating transcript,
// user message first for each turn.
func flatten(turns []models.Turn) []llm.Content {
	if len(turns) == 0 {
		return nil
	}
	out := make([]llm.Content, 0, len(turns)*2)
	for _, turn := range turns {
		out = append(out,
			llm.Content{Role: llm.RoleUser, Text: turn.UserText},
			llm.Content{Role: llm.RoleModel, Text: turn.ModelText},
		)
	}
	return out
}
