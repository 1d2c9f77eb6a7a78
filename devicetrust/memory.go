package devicetrust

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local [Store] for single-instance deployments and tests.
type MemoryStore struct {
	mu     sync.Mutex
	byUser map[string]map[string]*Device
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string]map[string]*Device),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for expiry checks. A nil clock is ignored.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Save(_ context.Context, device *Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, ok := s.byUser[device.UserID]
	if !ok {
		devices = make(map[string]*Device)
		s.byUser[device.UserID] = devices
	}
	d := *device
	devices[device.TokenHash] = &d
	return nil
}

func (s *MemoryStore) Find(_ context.Context, userID, tokenHash string) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byUser[userID][tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	// Expired rows are returned as is; the registry rejects and deletes them.
	c := *d
	return &c, nil
}

func (s *MemoryStore) Touch(_ context.Context, userID, tokenHash string, lastSeen, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byUser[userID][tokenHash]
	if !ok {
		return ErrNotFound
	}
	d.LastSeenAt = lastSeen
	if expiresAt.After(d.ExpiresAt) {
		d.ExpiresAt = expiresAt
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]Device, 0, len(s.byUser[userID]))
	for hash, d := range s.byUser[userID] {
		if !now.Before(d.ExpiresAt) {
			delete(s.byUser[userID], hash)
			continue
		}
		out = append(out, *d)
	}
	sortDevices(out)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string, ids []string) (int, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for hash, d := range s.byUser[userID] {
		if _, ok := want[d.ID]; ok {
			delete(s.byUser[userID], hash)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.byUser[userID])
	delete(s.byUser, userID)
	return removed, nil
}

// sortDevices orders most recently used first.
func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].LastSeenAt.Equal(devices[j].LastSeenAt) {
			return devices[i].ID < devices[j].ID
		}
		return devices[i].LastSeenAt.After(devices[j].LastSeenAt)
	})
}
