package devicetrust

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

const tokenBytes = 32

// ErrMalformedToken is returned for tokens that could never have been issued.
var ErrMalformedToken = errors.New("malformed trust token")

// NewToken returns a fresh base64url trust token carrying 256 bits of entropy.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 of a raw trust token.
func HashToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(decoded) != tokenBytes {
		return "", ErrMalformedToken
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}

// HashUserAgent returns the hex SHA-256 of the normalized user agent.
func HashUserAgent(ua string) string {
	sum := sha256.Sum256([]byte(NormalizeUserAgent(ua)))
	return hex.EncodeToString(sum[:])
}
