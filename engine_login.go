package siteAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/devicetrust"
	"github.com/MrEthical07/siteAuth/internal/audit"
	"github.com/MrEthical07/siteAuth/password"
)

// Login checks email and password. When trustToken names a trusted device that
// still matches the caller's user agent and network, tokens are issued
// directly; otherwise a one-time code is sent and the result only reports that
// a second factor is required.
//
// The caller's IP and user agent are read from ctx (see [WithClientIP] and
// [WithUserAgent]).
func (e *Engine) Login(ctx context.Context, email, pw, trustToken string) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = credential.NormalizeEmail(email)
	ip := clientIPFromContext(ctx)
	emailMeta := func() map[string]string { return map[string]string{"email": email} }

	if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEntry{
			kind:        audit.KindLoginFailed,
			description: "login throttled",
			err:         ErrRateLimited,
			metadata:    emailMeta,
		})
		return nil, ErrRateLimited
	}

	acc, err := e.verifyCredentials(ctx, email, pw)
	if err != nil {
		entry := auditEntry{kind: audit.KindLoginFailed, description: "login rejected", err: err, metadata: emailMeta}
		switch {
		case errors.Is(err, ErrAccountInactive):
			e.metricInc(MetricLoginInactive)
			entry.actorID, entry.actorRole = acc.ID, acc.Role
		case errors.Is(err, ErrInvalidCredentials):
			e.metricInc(MetricLoginFailure)
			if rerr := e.limiter.RecordLoginFailure(ctx, email, ip); rerr != nil {
				e.logger.Warn("login failure not counted", slog.Any("error", rerr))
			}
		default:
			e.metricInc(MetricLoginFailure)
		}
		e.emitAudit(ctx, entry)
		return nil, err
	}

	if err := e.limiter.ResetLogin(ctx, email); err != nil {
		e.logger.Warn("login throttle reset failed", slog.Any("error", err))
	}
	e.maybeRehash(ctx, acc, pw)

	if trustToken != "" {
		if device := e.recognizeDevice(ctx, acc, trustToken); device != nil {
			tokens, err := e.issueTokens(ctx, acc, LifetimeLong)
			if err != nil {
				return nil, err
			}
			e.metricInc(MetricLoginSuccess)
			e.metricInc(MetricLoginTrusted)
			e.emitAudit(ctx, auditEntry{
				kind:        audit.KindLoginTrusted,
				success:     true,
				actorID:     acc.ID,
				actorRole:   acc.Role,
				description: "login from trusted device",
				metadata: func() map[string]string {
					return map[string]string{"device_id": device.ID}
				},
			})
			return &LoginResult{
				Tokens:         tokens,
				User:           userOf(acc),
				TrustToken:     trustToken,
				TrustExpiresAt: device.ExpiresAt,
			}, nil
		}
	}

	return e.startSecondFactor(ctx, acc)
}

// verifyCredentials never distinguishes an unknown email from a wrong
// password. Inactive accounts fail with ErrAccountInactive before the password
// is checked, and the returned account is non-nil in that case only.
func (e *Engine) verifyCredentials(ctx context.Context, email, pw string) (*Account, error) {
	if email == "" || pw == "" {
		return nil, ErrInvalidCredentials
	}

	acc, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			_, _ = e.hasher.Verify(pw, e.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if acc.Status != credential.StatusActive {
		return acc, ErrAccountInactive
	}

	ok, err := e.hasher.Verify(pw, acc.PasswordHash)
	if err != nil {
		if !errors.Is(err, password.ErrTooLong) {
			e.logger.Error("stored password hash unreadable", slog.String("account_id", acc.ID), slog.Any("error", err))
		}
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// recognizeDevice returns the refreshed device, or nil when login must fall
// through to the second factor.
func (e *Engine) recognizeDevice(ctx context.Context, acc *Account, raw string) *devicetrust.Device {
	device, err := e.devices.Recognize(ctx, acc.ID, raw, userAgentFromContext(ctx), clientIPFromContext(ctx))
	if err == nil {
		return device
	}

	e.metricInc(MetricDeviceRejected)
	var rejection *devicetrust.Rejection
	if errors.As(err, &rejection) {
		switch rejection.Reason {
		case devicetrust.ReasonUserAgentChange:
			e.metricInc(MetricDeviceUAMismatch)
		case devicetrust.ReasonNetworkChange:
			e.metricInc(MetricDeviceIPMismatch)
		}
		return nil
	}
	e.logger.Warn("trusted device lookup failed", slog.String("account_id", acc.ID), slog.Any("error", err))
	return nil
}

// maybeRehash upgrades a legacy or weaker hash after a successful login.
func (e *Engine) maybeRehash(ctx context.Context, acc *Account, pw string) {
	if !e.hasher.NeedsRehash(acc.PasswordHash) {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err == nil {
		err = e.accounts.UpdatePasswordHash(ctx, acc.ID, hash)
	}
	if err != nil {
		e.logger.Warn("password rehash failed", slog.String("account_id", acc.ID), slog.Any("error", err))
		return
	}
	acc.PasswordHash = hash
	e.metricInc(MetricPasswordRehashed)
}
