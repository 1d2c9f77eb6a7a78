package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	minMemoryKB   = 8 * 1024
	minSaltLength = 16
	minKeyLength  = 16

	// DefaultMaxBytes bounds the input fed to the KDF.
	DefaultMaxBytes = 1024
)

// ErrTooLong is returned when a password exceeds the configured maximum.
var ErrTooLong = errors.New("password: input too long")

// Params are the argon2id cost parameters used for new hashes.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxBytes caps password length; zero means DefaultMaxBytes.
	MaxBytes int
}

// DefaultParams returns the parameters recommended for interactive logins.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Validate checks the parameters against the floors this package accepts.
func (p Params) Validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KiB", minMemoryKB)
	case p.Time < 1:
		return errors.New("password: time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("password: parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %d", minKeyLength)
	case p.MaxBytes < 0:
		return errors.New("password: max bytes must not be negative")
	}
	return nil
}

// Hasher hashes with argon2id and verifies argon2id or legacy bcrypt hashes.
// It is safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates p and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.MaxBytes == 0 {
		p.MaxBytes = DefaultMaxBytes
	}
	return &Hasher{params: p}, nil
}

// Hash returns a PHC-encoded argon2id hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > h.params.MaxBytes {
		return "", ErrTooLong
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return encodePHC(h.params, salt, key), nil
}

// Verify reports whether password matches encoded. A non-nil error means the
// stored hash could not be interpreted, not that the password was wrong.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if len(password) > h.params.MaxBytes {
		return false, ErrTooLong
	}
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("password: %w", err)
		}
	}

	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), stored.salt, stored.params.Time, stored.params.Memory, stored.params.Parallelism, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded should be replaced by a fresh Hash.
// Unparseable hashes report false; Verify already rejects them.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	stored, err := decodePHC(encoded)
	if err != nil {
		return false
	}
	return stored.params.Memory < h.params.Memory ||
		stored.params.Time < h.params.Time ||
		stored.params.Parallelism < h.params.Parallelism ||
		stored.params.KeyLength != h.params.KeyLength
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}
