package storage

import (
	"fmt"
	"log"
	"sync"
	"time"

	"guto-paylink/internal/intent"
)

// SessionStore provides thread-safe in-memory storage for payer sessions.
// Sessions are never persisted; they live for one form flow and are swept
// once their TTL passes.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	maxAge   time.Duration
	verbose  bool
}

type entry struct {
	machine   *intent.Machine
	createdAt time.Time
	closers   []func()
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(maxAge time.Duration, verbose bool) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entry),
		maxAge:   maxAge,
		verbose:  verbose,
	}
}

// Put stores a session under its id.
func (s *SessionStore) Put(id string, m *intent.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return fmt.Errorf("session id already exists")
	}
	s.sessions[id] = &entry{machine: m, createdAt: time.Now()}

	if s.verbose {
		log.Printf("[STORAGE] Stored session %s (total: %d)", id, len(s.sessions))
	}
	return nil
}

// Get retrieves a session by id.
func (s *SessionStore) Get(id string) (*intent.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return e.machine, true
}

// AddCloser registers a cleanup hook run when the session is removed; used
// to release raster resources tied to the session's receipt.
func (s *SessionStore) AddCloser(id string, closer func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.closers = append(e.closers, closer)
	}
}

// Remove deletes a session and runs its cleanup hooks.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, closer := range e.closers {
		closer()
	}
	if s.verbose {
		log.Printf("[STORAGE] Removed session %s", id)
	}
}

// Cleanup removes expired sessions.
func (s *SessionStore) Cleanup() {
	s.mu.Lock()
	cutoff := time.Now().Add(-s.maxAge)
	var expired []*entry
	removed := 0
	for id, e := range s.sessions {
		if e.createdAt.Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, e)
			removed++
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		for _, closer := range e.closers {
			closer()
		}
	}

	if s.verbose && removed > 0 {
		log.Printf("[STORAGE] Cleanup completed: removed %d expired sessions", removed)
	}
}

// StartCleanupRoutine starts a background routine to sweep expired sessions.
func (s *SessionStore) StartCleanupRoutine(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.Cleanup()
		}
	}()

	if s.verbose {
		log.Printf("[STORAGE] Started cleanup routine (interval: %v)", interval)
	}
}

// Stats returns total and expired session counts.
func (s *SessionStore) Stats() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-s.maxAge)
	total := len(s.sessions)
	expired := 0
	for _, e := range s.sessions {
		if e.createdAt.Before(cutoff) {
			expired++
		}
	}
	return total, expired
}
