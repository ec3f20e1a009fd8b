package user

import "sync"

// Store exposes account lookup for the auth service.
type Store interface {
	Find(username string) (User, bool)
	Insert(u User) bool
}

// MemoryStore implements Store with an in-memory map. Accounts live for the
// lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]User
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied users.
func NewMemoryStore(items ...User) *MemoryStore {
	store := &MemoryStore{items: make(map[string]User, len(items))}
	for _, item := range items {
		store.items[item.Username] = item
	}
	return store
}

// Find looks up a user by username.
func (s *MemoryStore) Find(username string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[username]
	return item, ok
}

// Insert adds u unless the username is taken.
func (s *MemoryStore) Insert(u User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[u.Username]; exists {
		return false
	}
	s.items[u.Username] = u
	return true
}

// Len reports the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
