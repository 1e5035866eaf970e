package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/ghostview/internal/engine/sandbox"
	"github.com/bytedance/sonic"
)

// WebStorage holds localStorage for every origin. It is written to disk on
// Flush, the way engines write lazily.
type WebStorage struct {
	path string

	mu      sync.RWMutex
	origins map[string]map[string]string
}

func newWebStorage(dataDir string) *WebStorage {
	return &WebStorage{
		path:    filepath.Join(dataDir, "Local Storage", "storage.json"),
		origins: make(map[string]map[string]string),
	}
}

// Origin returns the localStorage of one origin.
func (s *WebStorage) Origin(origin string) sandbox.Storage {
	return &originStorage{store: s, origin: origin}
}

func (s *WebStorage) DeleteAllData() {
	s.mu.Lock()
	s.origins = make(map[string]map[string]string)
	s.mu.Unlock()
}

// Len counts stored items across origins.
func (s *WebStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, items := range s.origins {
		n += len(items)
	}
	return n
}

func (s *WebStorage) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	origins := make(map[string]map[string]string)
	if err := sonic.Unmarshal(data, &origins); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.origins = origins
	s.mu.Unlock()
	return nil
}

func (s *WebStorage) flush() error {
	s.mu.RLock()
	if len(s.origins) == 0 {
		s.mu.RUnlock()
		return nil
	}
	data, err := sonic.Marshal(s.origins)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return writeFile(s.path, data)
}

type originStorage struct {
	store  *WebStorage
	origin string
}

func (o *originStorage) GetItem(key string) (string, bool) {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	v, ok := o.store.origins[o.origin][key]
	return v, ok
}

func (o *originStorage) SetItem(key, value string) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	items, ok := o.store.origins[o.origin]
	if !ok {
		items = make(map[string]string)
		o.store.origins[o.origin] = items
	}
	items[key] = value
}

func (o *originStorage) RemoveItem(key string) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	delete(o.store.origins[o.origin], key)
}

func (o *originStorage) Clear() {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	delete(o.store.origins, o.origin)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
