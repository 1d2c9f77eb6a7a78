package siteAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/internal/audit"
)

// Logout ends the refresh lineage of refreshToken when reuse detection is on
// and records a logout event for the identity in ctx, if any. It never fails;
// the caller clears the refresh cookie regardless.
func (e *Engine) Logout(ctx context.Context, refreshToken string) {
	if e == nil {
		return
	}

	if e.lineages != nil && refreshToken != "" {
		if claims, err := e.jwt.ParseRefresh(refreshToken); err == nil {
			if err := e.lineages.End(ctx, claims.Lineage); err != nil {
				e.logger.Warn("lineage end failed", slog.Any("error", err))
			}
		}
	}

	e.metricInc(MetricLogout)
	if id, ok := IdentityFromContext(ctx); ok {
		e.emitAudit(ctx, auditEntry{
			kind:        audit.KindLogout,
			success:     true,
			actorID:     id.UserID,
			actorRole:   id.Role,
			description: "logout",
		})
	}
}

// RevokeSessions bumps the account's token version, invalidating every
// outstanding refresh token. Access tokens already issued stay valid until
// they expire.
func (e *Engine) RevokeSessions(ctx context.Context, accountID string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrUnauthorized
	}

	if _, err := e.accounts.BumpTokenVersion(ctx, accountID); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionsRevoked)
	actorRole := ""
	if id, ok := IdentityFromContext(ctx); ok && id.UserID == accountID {
		actorRole = id.Role
	}
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindSessionsRevoked,
		success:     true,
		actorID:     accountID,
		actorRole:   actorRole,
		description: "all sessions revoked",
	})
	return nil
}
