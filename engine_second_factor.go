package siteAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/siteAuth/challenge"
	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/internal/audit"
)

// startSecondFactor issues a fresh one-time code for acc, replacing any live
// one, and emails it. Delivery failure does not fail the login.
func (e *Engine) startSecondFactor(ctx context.Context, acc *Account) (*LoginResult, error) {
	code, err := e.issueCode(ctx, acc, false)
	if err != nil {
		return nil, err
	}
	result := &LoginResult{RequiresSecondFactor: true}
	if !e.production() {
		result.DevCode = code
	}
	return result, nil
}

// errNoLiveChallenge is returned by issueCode when a resend finds nothing to replace.
var errNoLiveChallenge = errors.New("no live challenge to resend")

// issueCode stores and emails a fresh code. With resend set it only replaces a
// challenge that a password step already opened.
func (e *Engine) issueCode(ctx context.Context, acc *Account, resend bool) (string, error) {
	if err := e.limiter.AllowCodeSend(ctx, acc.Email); err != nil {
		e.metricInc(MetricLoginRateLimited)
		return "", ErrRateLimited
	}

	code, err := challenge.NewCode(e.config.Challenge.CodeDigits)
	if err != nil {
		return "", err
	}
	now := e.now()
	expiresAt := now.Add(e.config.Challenge.TTL)
	if resend {
		err = e.challenges.Replace(ctx, acc.Email, code, expiresAt, now)
		if errors.Is(err, challenge.ErrNotFound) {
			return "", errNoLiveChallenge
		}
	} else {
		err = e.challenges.Put(ctx, acc.Email, code, expiresAt)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	msg, err := render(codeTemplate, e.config.Email.ProductName+" sign-in code", map[string]any{
		"Product": e.config.Email.ProductName,
		"Code":    code,
		"Minutes": int(e.config.Challenge.TTL.Minutes()),
	})
	sent := false
	if err == nil {
		sent = e.deliver(ctx, acc.Email, msg)
	} else {
		e.logger.Error("code email render failed", slog.Any("error", err))
	}
	if !sent && !e.production() {
		e.logger.Info("one-time code not delivered", slog.String("email", acc.Email), slog.String("code", code))
	}

	e.metricInc(MetricSecondFactorIssued)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindCodeIssued,
		success:     true,
		actorID:     acc.ID,
		actorRole:   acc.Role,
		description: "one-time code issued",
		metadata: func() map[string]string {
			return map[string]string{"delivered": fmt.Sprint(sent)}
		},
	})
	return code, nil
}

// ResendCode replaces the live one-time code for email with a new one. It
// only works between Login and VerifySecondFactor. Unknown and inactive
// emails, and emails with no pending code, succeed silently so the endpoint
// does not reveal which accounts exist.
func (e *Engine) ResendCode(ctx context.Context, email string) (*CodeResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	acc, err := e.accounts.FindByEmail(ctx, credential.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return &CodeResult{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if acc.Status != credential.StatusActive {
		return &CodeResult{}, nil
	}

	code, err := e.issueCode(ctx, acc, true)
	if errors.Is(err, errNoLiveChallenge) {
		return &CodeResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if e.production() {
		return &CodeResult{}, nil
	}
	return &CodeResult{DevCode: code}, nil
}

// VerifySecondFactor redeems the one-time code for email and issues tokens.
// rememberDevice selects the long refresh lifetime and registers a trusted
// device whose raw token is returned in LoginResult.TrustToken.
func (e *Engine) VerifySecondFactor(ctx context.Context, email, code string, rememberDevice bool) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = credential.NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, ErrInvalidInput
	}

	if err := e.challenges.Consume(ctx, email, code, e.now()); err != nil {
		mapped := mapChallengeError(err)
		if errors.Is(mapped, ErrChallengeExpired) {
			e.metricInc(MetricSecondFactorExpired)
		}
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEntry{
			kind:        audit.KindLoginFailed,
			description: "second factor rejected",
			err:         mapped,
			metadata:    func() map[string]string { return map[string]string{"email": email} },
		})
		return nil, mapped
	}

	acc, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if acc.Status != credential.StatusActive {
		return nil, ErrAccountInactive
	}

	class := LifetimeShort
	if rememberDevice {
		class = LifetimeLong
	}
	tokens, err := e.issueTokens(ctx, acc, class)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Tokens: tokens, User: userOf(acc)}
	if rememberDevice {
		raw, device, err := e.devices.Remember(ctx, acc.ID, userAgentFromContext(ctx), clientIPFromContext(ctx))
		if err != nil {
			e.logger.Warn("trusted device not saved", slog.String("account_id", acc.ID), slog.Any("error", err))
		} else {
			result.TrustToken = raw
			result.TrustExpiresAt = device.ExpiresAt
			e.metricInc(MetricDeviceRemembered)
		}
	}

	e.metricInc(MetricSecondFactorSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEntry{
		kind:        audit.KindLogin,
		success:     true,
		actorID:     acc.ID,
		actorRole:   acc.Role,
		description: "login with one-time code",
		metadata: func() map[string]string {
			return map[string]string{"remember_device": fmt.Sprint(result.TrustToken != "")}
		},
	})
	return result, nil
}

func mapChallengeError(err error) error {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return ErrNoChallenge
	case errors.Is(err, challenge.ErrExpired):
		return ErrChallengeExpired
	case errors.Is(err, challenge.ErrMismatch):
		return ErrCodeMismatch
	case errors.Is(err, challenge.ErrAttemptsExceeded):
		return ErrTooManyAttempts
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
