package session

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the persisted state of one tab. It implements webview.Session.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	url       string
	title     string
	state     []byte
	blocking  bool
	progress  int
	updatedAt time.Time
}

// Snapshot is a point-in-time copy of a Session for callers outside the
// package.
type Snapshot struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Progress  int       `json:"progress"`
	Blocking  bool      `json:"blocking"`
	HasState  bool      `json:"has_state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(url string, blocking bool) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		url:       url,
		blocking:  blocking,
		updatedAt: now,
	}
}

func (s *Session) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

func (s *Session) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// NavigationState returns a copy of the engine blob, or nil.
func (s *Session) NavigationState() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.state)
}

func (s *Session) SetNavigationState(state []byte) {
	s.mu.Lock()
	s.state = bytes.Clone(state)
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

func (s *Session) Blocking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocking
}

func (s *Session) SetBlocking(enabled bool) {
	s.mu.Lock()
	s.blocking = enabled
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Session) SetProgress(progress int) {
	s.mu.Lock()
	s.progress = progress
	s.mu.Unlock()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.ID,
		URL:       s.url,
		Title:     s.title,
		Progress:  s.progress,
		Blocking:  s.blocking,
		HasState:  len(s.state) > 0,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}
