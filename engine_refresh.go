package siteAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/internal/audit"
	"github.com/MrEthical07/siteAuth/internal/stores"
)

// Refresh rotates refreshToken: it returns a new refresh token of the same
// lifetime class and a fresh access token. A token minted before the account's
// last token version bump fails with ErrRefreshRevoked.
//
// With reuse detection enabled, presenting a refresh token that has already
// been rotated revokes every session of the account.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwt.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}

	acc, err := e.accounts.FindByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			e.metricInc(MetricRefreshRevoked)
			return nil, ErrRefreshRevoked
		}
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if claims.TokenVersion != acc.TokenVersion || acc.Status != credential.StatusActive {
		e.metricInc(MetricRefreshRevoked)
		return nil, ErrRefreshRevoked
	}

	pair, next, err := e.mintPair(acc, claims.Class, claims.Lineage)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	if e.lineages != nil {
		err := e.lineages.Advance(ctx, claims.Lineage, claims.ID, next.ID, e.jwt.RefreshTTL(claims.Class))
		switch {
		case err == nil:
		case errors.Is(err, stores.ErrLineageReuse):
			e.revokeOnReuse(ctx, acc, claims.Lineage)
			return nil, ErrRefreshRevoked
		case errors.Is(err, stores.ErrLineageUnknown):
			e.metricInc(MetricRefreshRevoked)
			return nil, ErrRefreshRevoked
		default:
			e.metricInc(MetricRefreshFailure)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	e.metricInc(MetricRefreshSuccess)
	return pair, nil
}

// revokeOnReuse bumps the token version so every lineage of acc dies, not
// only the one that was replayed.
func (e *Engine) revokeOnReuse(ctx context.Context, acc *Account, lineage string) {
	e.metricInc(MetricRefreshReuseDetected)
	e.metricInc(MetricRefreshRevoked)

	if _, err := e.accounts.BumpTokenVersion(ctx, acc.ID); err != nil {
		e.logger.Error("token version bump after refresh reuse failed", slog.String("account_id", acc.ID), slog.Any("error", err))
	}
	if err := e.lineages.End(ctx, lineage); err != nil {
		e.logger.Warn("lineage end failed", slog.Any("error", err))
	}

	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindRefreshReuse,
		actorID:     acc.ID,
		actorRole:   acc.Role,
		description: "superseded refresh token presented; sessions revoked",
		err:         ErrRefreshRevoked,
	})
}
