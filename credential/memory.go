package credential

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(acc), nil
}

// Create stores a copy of account. An empty ID is filled with a random UUID.
func (s *MemoryStore) Create(_ context.Context, account *Account) error {
	if account == nil {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(account.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicateEmail
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := s.now().UTC()
	account.Email = email
	account.CreatedAt = now
	account.UpdatedAt = now

	s.byID[account.ID] = cloneAccount(account)
	s.byEmail[email] = account.ID
	return nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.mutate(id, func(acc *Account) {
		acc.PasswordHash = hash
	})
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	return s.mutate(id, func(acc *Account) {
		acc.Status = status
	})
}

func (s *MemoryStore) BumpTokenVersion(_ context.Context, id string) (int64, error) {
	var version int64
	err := s.mutate(id, func(acc *Account) {
		acc.TokenVersion++
		version = acc.TokenVersion
	})
	return version, err
}

func (s *MemoryStore) mutate(id string, fn func(*Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(acc)
	acc.UpdatedAt = s.now().UTC()
	return nil
}

func cloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
