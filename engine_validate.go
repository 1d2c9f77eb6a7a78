package siteAuth

import (
	"context"
	"time"
)

// ValidateAccess verifies an access token using only the signing key; no store
// is consulted, so a valid token cannot be revoked before it expires.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
	}()

	claims, err := e.jwt.ParseAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return &Identity{
		UserID:    claims.UID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
