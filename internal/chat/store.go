// Package chat holds assistant conversation sessions in process memory. Sessions are
// disposable: losing them never affects rental or payment state.
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("chat session not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    int32     `json:"userId"`
	Theme     Theme     `json:"theme"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Store is the session store used by the chat service.
type Store interface {
	Create(userID int32) *Session
	Get(id string) (*Session, error)
	// Update runs fn on the stored session while holding the store lock and refreshes LastSeen.
	Update(id string, fn func(s *Session)) (*Session, error)
	// Expire drops sessions idle since before cutoff and returns how many were removed.
	Expire(cutoff time.Time) int
	Len() int
}

type memoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxMessages int
	now         func() time.Time
}

// NewMemoryStore returns a Store keeping at most maxMessages messages per session.
func NewMemoryStore(maxMessages int) Store {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &memoryStore{
		sessions:    make(map[string]*Session),
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

func (m *memoryStore) Create(userID int32) *Session {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Theme:     ThemeLight,
		CreatedAt: now,
		LastSeen:  now,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s.clone()
}

func (m *memoryStore) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

func (m *memoryStore) Update(id string, fn func(s *Session)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	fn(s)
	if n := len(s.Messages); n > m.maxMessages {
		s.Messages = append([]Message(nil), s.Messages[n-m.maxMessages:]...)
	}
	s.LastSeen = m.now()
	return s.clone(), nil
}

func (m *memoryStore) Expire(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *memoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (s *Session) clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	return &c
}
