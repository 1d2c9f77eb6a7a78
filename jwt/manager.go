package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LifetimeClass selects the refresh-token lifetime.
type LifetimeClass string

const (
	// ClassLong is used when the user asked to remember the device.
	ClassLong LifetimeClass = "long"
	// ClassShort is the default refresh lifetime.
	ClassShort LifetimeClass = "short"
)

// Valid reports whether c is a known class.
func (c LifetimeClass) Valid() bool {
	return c == ClassLong || c == ClassShort
}

// SecretPair holds the access and refresh signing secrets for one key id.
type SecretPair struct {
	Access  []byte
	Refresh []byte
}

// Config configures a [Manager]. Access and refresh tokens are signed with
// different HS256 secrets so neither can be replayed as the other.
type Config struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessTTL       time.Duration
	RefreshTTLLong  time.Duration
	RefreshTTLShort time.Duration
	Issuer          string
	Audience        string
	Leeway          time.Duration
	// KeyID is stamped into the "kid" header of every minted token.
	KeyID string
	// VerifyKeys holds retired secrets still accepted during rotation, by kid.
	VerifyKeys map[string]SecretPair
	Now        func() time.Time
}

// Manager mints and verifies access and refresh tokens.
type Manager struct {
	config Config
}

// AccessClaims is the entire payload of an access token besides registered claims.
type AccessClaims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carries what is needed to decide whether a refresh is still allowed.
type RefreshClaims struct {
	UID          string        `json:"uid"`
	Role         string        `json:"role"`
	TokenVersion int64         `json:"tv"`
	Class        LifetimeClass `json:"lc"`
	Lineage      string        `json:"lid,omitempty"`
	jwt.RegisteredClaims
}

// RefreshInput describes a refresh token to mint.
type RefreshInput struct {
	UID          string
	Role         string
	TokenVersion int64
	Class        LifetimeClass
	// Lineage links rotated tokens back to the login that started the chain.
	// Empty starts a new lineage.
	Lineage string
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTLLong <= 0 || cfg.RefreshTTLShort <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, pair := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(pair.Access) == 0 || len(pair.Refresh) == 0 || bytes.Equal(pair.Access, pair.Refresh) {
			return nil, fmt.Errorf("invalid verify keys for kid %q", kid)
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the lifetime of class.
func (m *Manager) RefreshTTL(class LifetimeClass) time.Duration {
	if class == ClassLong {
		return m.config.RefreshTTLLong
	}
	return m.config.RefreshTTLShort
}

// CreateAccess mints an access token for uid/role and returns it with its expiry.
func (m *Manager) CreateAccess(uid, role string) (string, time.Time, error) {
	now := m.config.Now()
	expiresAt := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		UID:              uid,
		Role:             role,
		RegisteredClaims: m.registered(now, expiresAt, ""),
	}
	token, err := m.sign(claims, m.config.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// CreateRefresh mints a refresh token. The returned claims carry the generated
// token id and lineage.
func (m *Manager) CreateRefresh(in RefreshInput) (string, *RefreshClaims, error) {
	if !in.Class.Valid() {
		return "", nil, errors.New("invalid lifetime class")
	}
	lineage := in.Lineage
	if lineage == "" {
		lineage = uuid.NewString()
	}

	now := m.config.Now()
	claims := &RefreshClaims{
		UID:              in.UID,
		Role:             in.Role,
		TokenVersion:     in.TokenVersion,
		Class:            in.Class,
		Lineage:          lineage,
		RegisteredClaims: m.registered(now, now.Add(m.RefreshTTL(in.Class)), uuid.NewString()),
	}
	token, err := m.sign(claims, m.config.RefreshSecret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// ParseAccess verifies signature, algorithm, expiry, issuer and audience.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, func(p SecretPair) []byte { return p.Access }, m.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token the same way and checks its lifetime class.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, func(p SecretPair) []byte { return p.Refresh }, m.config.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.UID == "" || !claims.Class.Valid() || claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) registered(now, expiresAt time.Time, id string) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		ID:        id,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return rc
}

func (m *Manager) sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(secret)
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, pick func(SecretPair) []byte, current []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" || kid == m.config.KeyID {
			return current, nil
		}
		pair, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return pick(pair), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
