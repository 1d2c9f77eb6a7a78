package challenge

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

type memoryEntry struct {
	hash      [32]byte
	expiresAt time.Time
	attempts  int
}

// MemoryStore is a process-local [Store]. It is correct only for a single
// instance deployment; use [RedisStore] when more than one process serves logins.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	maxAttempts int
	now         func() time.Time
}

// NewMemoryStore returns an empty store. maxAttempts <= 0 disables the mismatch cap.
func NewMemoryStore(maxAttempts int) *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]*memoryEntry),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// WithClock sets the clock used to sweep old entries.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Put(_ context.Context, email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	s.entries[email] = &memoryEntry{
		hash:      hashCode(email, code),
		expiresAt: expiresAt,
	}
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, email, code string, expiresAt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[email]
	if !ok || !now.Before(entry.expiresAt) {
		return ErrNotFound
	}
	s.entries[email] = &memoryEntry{
		hash:      hashCode(email, code),
		expiresAt: expiresAt,
	}
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, email, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[email]
	if !ok {
		return ErrNotFound
	}
	if !now.Before(entry.expiresAt) {
		delete(s.entries, email)
		return ErrExpired
	}

	provided := hashCode(email, code)
	if subtle.ConstantTimeCompare(provided[:], entry.hash[:]) != 1 {
		entry.attempts++
		if s.maxAttempts > 0 && entry.attempts >= s.maxAttempts {
			delete(s.entries, email)
			return ErrAttemptsExceeded
		}
		return ErrMismatch
	}

	delete(s.entries, email)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	delete(s.entries, email)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored challenges, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for email, entry := range s.entries {
		if now.After(entry.expiresAt.Add(expiredRetention)) {
			delete(s.entries, email)
		}
	}
}
