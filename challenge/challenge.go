// Package challenge issues and verifies single-use numeric codes keyed by email.
//
// A Store holds at most one live challenge per email. Put overwrites, Replace
// only swaps the code of a challenge that is still live, and Consume is an atomic
// check-and-delete, so concurrent verifications of the same code succeed once.
package challenge

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
	"time"
)

var (
	// ErrNotFound means no challenge exists for the email.
	ErrNotFound = errors.New("challenge not found")
	// ErrExpired means the challenge existed but its expiry has passed. It is deleted.
	ErrExpired = errors.New("challenge expired")
	// ErrMismatch means the submitted code differs. The challenge stays live.
	ErrMismatch = errors.New("challenge code mismatch")
	// ErrAttemptsExceeded means the mismatch cap was reached. The challenge is deleted.
	ErrAttemptsExceeded = errors.New("challenge attempts exceeded")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("challenge store unavailable")
)

// expiredRetention keeps expired records around long enough to report ErrExpired
// instead of ErrNotFound.
const expiredRetention = 10 * time.Minute

// Store persists one challenge per email.
type Store interface {
	Put(ctx context.Context, email, code string, expiresAt time.Time) error
	// Replace swaps in a new code only while an unexpired challenge exists for
	// email at now. Otherwise it returns ErrNotFound and stores nothing.
	Replace(ctx context.Context, email, code string, expiresAt, now time.Time) error
	Consume(ctx context.Context, email, code string, now time.Time) error
	Delete(ctx context.Context, email string) error
}

// NewCode returns a uniformly random numeric code of the given length.
func NewCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// hashCode binds the code to its email so equal codes for different users never collide.
func hashCode(email, code string) [32]byte {
	return sha256.Sum256([]byte(email + "\x00" + strings.TrimSpace(code)))
}
