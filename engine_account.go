package siteAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/internal/audit"
	"github.com/MrEthical07/siteAuth/internal/stores"
	"github.com/MrEthical07/siteAuth/password"
)

// CreateAccount registers a new account. When Account.RequireActivation is
// set the account starts Inactive and an activation link is emailed.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email := credential.NormalizeEmail(req.Email)
	if !validEmail(email) {
		return nil, ErrInvalidInput
	}
	hash, err := e.hashNewPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	status := credential.StatusActive
	if e.config.Account.RequireActivation {
		status = credential.StatusInactive
	}

	acc := &Account{Email: email, PasswordHash: hash, Role: role, Status: status}
	if err := e.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, credential.ErrDuplicateEmail) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := &CreateAccountResult{User: userOf(acc)}
	if e.config.Account.RequireActivation {
		link, err := e.sendLink(ctx, acc, stores.PurposeActivation)
		if err != nil {
			e.logger.Warn("activation link not issued", slog.String("account_id", acc.ID), slog.Any("error", err))
		} else if !e.production() {
			result.DevLink = link
		}
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindAccountCreated,
		success:     true,
		actorID:     acc.ID,
		actorRole:   acc.Role,
		description: "account created",
		metadata: func() map[string]string {
			return map[string]string{"status": acc.Status.String()}
		},
	})
	return result, nil
}

// ActivateAccount redeems a single-use activation link token.
func (e *Engine) ActivateAccount(ctx context.Context, token string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	accountID, err := e.consumeLink(ctx, stores.PurposeActivation, token)
	if err != nil {
		return err
	}
	if err := e.accounts.SetStatus(ctx, accountID, credential.StatusActive); err != nil {
		return mapAccountError(err)
	}

	e.metricInc(MetricAccountActivated)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindAccountActivated,
		success:     true,
		actorID:     accountID,
		description: "account activated",
	})
	return nil
}

// SetAccountStatus changes the lifecycle status of an account. Deactivation
// also revokes every refresh token of the account.
func (e *Engine) SetAccountStatus(ctx context.Context, accountID string, status AccountStatus) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if status != credential.StatusActive && status != credential.StatusInactive {
		return ErrInvalidInput
	}

	if err := e.accounts.SetStatus(ctx, accountID, status); err != nil {
		return mapAccountError(err)
	}
	if status == credential.StatusInactive {
		if _, err := e.accounts.BumpTokenVersion(ctx, accountID); err != nil {
			return mapAccountError(err)
		}
	}

	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindAccountStatus,
		success:     true,
		actorID:     accountID,
		description: "account status changed",
		metadata: func() map[string]string {
			return map[string]string{"status": status.String()}
		},
	})
	return nil
}

// ChangePassword replaces the password after checking the current one and
// revokes every refresh token of the account.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	acc, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return mapAccountError(err)
	}
	ok, err := e.hasher.Verify(oldPassword, acc.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEntry{
			kind:        audit.KindPasswordChanged,
			actorID:     acc.ID,
			actorRole:   acc.Role,
			description: "password change rejected",
			err:         ErrInvalidCredentials,
		})
		return ErrInvalidCredentials
	}

	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	if err := e.accounts.UpdatePasswordHash(ctx, acc.ID, hash); err != nil {
		return mapAccountError(err)
	}
	if _, err := e.accounts.BumpTokenVersion(ctx, acc.ID); err != nil {
		return mapAccountError(err)
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindPasswordChanged,
		success:     true,
		actorID:     acc.ID,
		actorRole:   acc.Role,
		description: "password changed",
	})
	return nil
}

// hashNewPassword enforces the password policy and hashes pw.
func (e *Engine) hashNewPassword(pw string) (string, error) {
	if len(pw) < e.config.Account.MinPasswordLength {
		return "", ErrPasswordPolicy
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return "", ErrPasswordPolicy
		}
		return "", err
	}
	return hash, nil
}

func mapAccountError(err error) error {
	if errors.Is(err, credential.ErrNotFound) {
		return ErrAccountNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
