package siteAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/internal/audit"
	"github.com/MrEthical07/siteAuth/internal/stores"
)

// RequestPasswordReset emails a single-use reset link. Unknown and inactive
// emails succeed silently.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*LinkResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	acc, err := e.accounts.FindByEmail(ctx, credential.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return &LinkResult{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if acc.Status != credential.StatusActive {
		return &LinkResult{}, nil
	}

	link, err := e.sendLink(ctx, acc, stores.PurposeReset)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindPasswordReset,
		success:     true,
		actorID:     acc.ID,
		actorRole:   acc.Role,
		description: "password reset requested",
	})
	if e.production() {
		return &LinkResult{}, nil
	}
	return &LinkResult{DevLink: link}, nil
}

// ConfirmPasswordReset redeems a reset token and sets newPassword. Every
// refresh token and every trusted device of the account is revoked.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	// Check the policy first so a weak password does not burn the link.
	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	accountID, err := e.consumeLink(ctx, stores.PurposeReset, token)
	if err != nil {
		return err
	}

	if err := e.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return mapAccountError(err)
	}
	if _, err := e.accounts.BumpTokenVersion(ctx, accountID); err != nil {
		return mapAccountError(err)
	}
	revoked, err := e.devices.RevokeAll(ctx, accountID)
	if err != nil {
		e.logger.Warn("trusted devices not revoked after reset", slog.String("account_id", accountID), slog.Any("error", err))
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindPasswordReset,
		success:     true,
		actorID:     accountID,
		description: "password reset completed",
		metadata: func() map[string]string {
			return map[string]string{"devices_revoked": strconv.Itoa(revoked)}
		},
	})
	return nil
}

// sendLink issues a link token of purpose for acc and emails it. It returns
// the full link.
func (e *Engine) sendLink(ctx context.Context, acc *Account, purpose stores.LinkPurpose) (string, error) {
	ttl := e.config.Account.ResetTTL
	path := e.config.Email.ResetPath
	tmpl, subject := resetTemplate, e.config.Email.ProductName+" password reset"
	if purpose == stores.PurposeActivation {
		ttl = e.config.Account.ActivationTTL
		path = e.config.Email.ActivationPath
		tmpl, subject = activationTemplate, "Activate your "+e.config.Email.ProductName+" account"
	}

	raw, err := e.links.Issue(ctx, purpose, acc.ID, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	link := e.buildLink(path, raw)

	msg, err := render(tmpl, subject, map[string]any{
		"Product": e.config.Email.ProductName,
		"Link":    link,
		"Hours":   int(ttl.Hours()),
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		e.logger.Error("link email render failed", slog.Any("error", err))
		return link, nil
	}
	e.deliver(ctx, acc.Email, msg)
	return link, nil
}

func (e *Engine) consumeLink(ctx context.Context, purpose stores.LinkPurpose, token string) (string, error) {
	if token == "" {
		return "", ErrLinkInvalid
	}
	accountID, err := e.links.Consume(ctx, purpose, token)
	if err != nil {
		if errors.Is(err, stores.ErrLinkNotFound) {
			return "", ErrLinkInvalid
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return accountID, nil
}
