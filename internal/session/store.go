package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

const sessionExt = ".session"

// record is the on-disk form of a Session.
type record struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Blocking  bool      `json:"blocking"`
	State     []byte    `json:"state,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions as one file each under {root}/sessions.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(root string) (*Store, error) {
	dir := filepath.Join(root, "sessions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (st *Store) Save(s *Session) error {
	s.mu.RLock()
	rec := record{
		ID:        s.ID,
		URL:       s.url,
		Title:     s.title,
		Blocking:  s.blocking,
		State:     s.state,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
	data, err := sonic.Marshal(rec)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	path := st.path(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (st *Store) Load(id string) (*Session, error) {
	if !validID(id) {
		return nil, ErrSessionNotFound
	}
	st.mu.Lock()
	data, err := os.ReadFile(st.path(id))
	st.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var rec record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &Session{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		url:       rec.URL,
		title:     rec.Title,
		state:     rec.State,
		blocking:  rec.Blocking,
		updatedAt: rec.UpdatedAt,
	}, nil
}

// Has reports whether id has a stored session.
func (st *Store) Has(id string) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(st.path(id))
	return err == nil
}

func (st *Store) Delete(id string) error {
	if !validID(id) {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	err := os.Remove(st.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns every stored session, most recently updated first. Unreadable
// files are skipped.
func (st *Store) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		s, err := st.Load(strings.TrimSuffix(name, sessionExt))
		if err != nil {
			continue
		}
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (st *Store) path(id string) string {
	return filepath.Join(st.dir, id+sessionExt)
}

// validID keeps IDs from escaping the store directory.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
