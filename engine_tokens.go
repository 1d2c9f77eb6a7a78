package siteAuth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/siteAuth/jwt"
)

// mintPair signs a fresh access token and a refresh token of class for acc.
// A non-empty lineage continues an existing refresh chain.
func (e *Engine) mintPair(acc *Account, class LifetimeClass, lineage string) (*TokenPair, *jwt.RefreshClaims, error) {
	access, accessExp, err := e.jwt.CreateAccess(acc.ID, acc.Role)
	if err != nil {
		return nil, nil, err
	}
	refresh, claims, err := e.jwt.CreateRefresh(jwt.RefreshInput{
		UID:          acc.ID,
		Role:         acc.Role,
		TokenVersion: acc.TokenVersion,
		Class:        class,
		Lineage:      lineage,
	})
	if err != nil {
		return nil, nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		ExpiresIn:        int64(e.jwt.AccessTTL().Seconds()),
		RefreshToken:     refresh,
		RefreshExpiresAt: claims.ExpiresAt.Time,
		Class:            class,
	}, claims, nil
}

// issueTokens mints a pair for a fresh login and starts its lineage when
// reuse detection is enabled.
func (e *Engine) issueTokens(ctx context.Context, acc *Account, class LifetimeClass) (*TokenPair, error) {
	pair, claims, err := e.mintPair(acc, class, "")
	if err != nil {
		return nil, err
	}
	if e.lineages != nil {
		if err := e.lineages.Start(ctx, claims.Lineage, claims.ID, e.jwt.RefreshTTL(class)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return pair, nil
}
