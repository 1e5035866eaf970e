package engine

import (
	"strings"
	"sync"
)

// SSLExceptions are hosts the user chose to trust despite a bad certificate.
type SSLExceptions struct {
	mu    sync.RWMutex
	hosts map[string]struct{}
}

func newSSLExceptions() *SSLExceptions {
	return &SSLExceptions{hosts: make(map[string]struct{})}
}

func (s *SSLExceptions) Allow(host string) {
	s.mu.Lock()
	s.hosts[strings.ToLower(host)] = struct{}{}
	s.mu.Unlock()
}

func (s *SSLExceptions) Allowed(host string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hosts[strings.ToLower(host)]
	return ok
}

func (s *SSLExceptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hosts)
}

func (s *SSLExceptions) Clear() {
	s.mu.Lock()
	s.hosts = make(map[string]struct{})
	s.mu.Unlock()
}
