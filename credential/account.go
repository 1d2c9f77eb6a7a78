package credential

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of an account.
type Status uint8

// The zero value is StatusInactive, so an account built without a status
// cannot authenticate.
const (
	// StatusInactive accounts are pending activation or were disabled by an operator.
	StatusInactive Status = iota
	// StatusActive accounts may authenticate.
	StatusActive
)

// String returns the lower-case status name used in storage and API payloads.
func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// ParseStatus maps a stored status name back to a [Status].
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	default:
		return StatusInactive, errors.New("unknown account status")
	}
}

var (
	// ErrNotFound is returned when no account matches the lookup key.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned by Create when the normalized email is taken.
	ErrDuplicateEmail = errors.New("account email already exists")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("credential store unavailable")
)

// Account is the identity record for one user.
//
// TokenVersion starts at 0 and only ever increases; every refresh token
// embeds the value current at mint time.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	Status       Status
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the narrow contract the engine needs from a credential backend.
// Every method is a single atomic read or write.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetStatus(ctx context.Context, id string, status Status) error
	// BumpTokenVersion increments the account's token version and returns the new value.
	BumpTokenVersion(ctx context.Context, id string) (int64, error)
}

// NormalizeEmail case-folds and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
