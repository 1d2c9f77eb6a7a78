package devicetrust

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no device matches the lookup key.
	ErrNotFound = errors.New("trusted device not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("trusted device store unavailable")
)

// Device is one trusted (user, device) pair. It never holds the raw trust token.
type Device struct {
	ID            string
	UserID        string
	TokenHash     string
	UserAgentHash string
	IPPrefix      string
	Label         string
	CreatedAt     time.Time
	LastSeenAt    time.Time
	ExpiresAt     time.Time
}

// Store persists trusted devices. List omits records past ExpiresAt. Find may
// still return one, so callers check ExpiresAt themselves.
type Store interface {
	Save(ctx context.Context, device *Device) error
	Find(ctx context.Context, userID, tokenHash string) (*Device, error)
	// Touch moves LastSeenAt and ExpiresAt forward without altering the fingerprint.
	// It must not recreate a record that was deleted concurrently.
	Touch(ctx context.Context, userID, tokenHash string, lastSeen, expiresAt time.Time) error
	List(ctx context.Context, userID string) ([]Device, error)
	Delete(ctx context.Context, userID string, ids []string) (int, error)
	DeleteAll(ctx context.Context, userID string) (int, error)
}
