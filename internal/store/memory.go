// Package store keeps mounted widget sessions in memory for the HTTP surface.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"payment-widget/internal/channel"
	"payment-widget/internal/domain"
	"payment-widget/internal/widget"
)

// Entry is one mounted widget and the outbox its host polls.
type Entry struct {
	ID        string
	Widget    *widget.Widget
	Outbox    *channel.QueueTransport
	CreatedAt time.Time

	lastSeen atomic.Int64
}

// Touch records activity on the entry at t.
func (e *Entry) Touch(t time.Time) {
	e.lastSeen.Store(t.UnixNano())
}

// LastSeen returns the last recorded activity, or CreatedAt if there was none.
func (e *Entry) LastSeen() time.Time {
	ns := e.lastSeen.Load()
	if ns == 0 {
		return e.CreatedAt
	}
	return time.Unix(0, ns)
}

// Repository defines the interface for session storage.
type Repository interface {
	Save(entry *Entry) error
	Get(id string) (*Entry, error)
	List() ([]*Entry, error)
	Exists(id string) bool
	Delete(id string) error
}

// MemoryStore is an in-memory implementation of Repository. Entries never
// outlive the process; the server expires idle ones.
type MemoryStore struct {
	entries map[string]*Entry
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Save stores an entry. If it already exists, it is replaced.
func (s *MemoryStore) Save(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, exists := s.entries[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return entry, nil
}

// List returns all entries sorted by ID.
func (s *MemoryStore) List() ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]*Entry, 0, len(s.entries))
	for _, id := range ids {
		result = append(result, s.entries[id])
	}
	return result, nil
}

// Exists checks if an entry exists.
func (s *MemoryStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.entries[id]
	return exists
}

// Delete discards an entry.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; !exists {
		return domain.ErrSessionNotFound
	}
	delete(s.entries, id)
	return nil
}
