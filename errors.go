package siteAuth

import (
	"errors"

	"github.com/MrEthical07/siteAuth/internal/rate"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for inactive accounts whether or not the password was right.
	ErrAccountInactive = errors.New("account inactive")
	// ErrNoChallenge means no live one-time code exists for the email.
	ErrNoChallenge = errors.New("no pending verification code")
	// ErrChallengeExpired means the code existed but its expiry passed. The challenge is deleted.
	ErrChallengeExpired = errors.New("verification code expired")
	// ErrCodeMismatch means the supplied code is wrong. The challenge stays live.
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrTooManyAttempts means the attempt cap was reached and the challenge was discarded.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrRefreshRevoked means the refresh token's version no longer matches the account.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrTokenInvalid covers bad signatures, malformed tokens and expired tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUnauthorized is returned for protected operations without a valid access token.
	ErrUnauthorized = errors.New("unauthorized")

	ErrRateLimited       = errors.New("too many requests")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrLinkInvalid       = errors.New("link invalid or expired")
	ErrPasswordPolicy    = errors.New("password does not meet policy")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStoreUnavailable  = errors.New("backing store unavailable")
	ErrEngineNotReady    = errors.New("engine not initialized")
	ErrDeviceUnavailable = errors.New("trusted device store unavailable")
)

// ErrorCode is the stable, client-facing identifier of an error.
type ErrorCode string

const (
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeAccountInactive    ErrorCode = "account_inactive"
	CodeNoChallenge        ErrorCode = "no_challenge"
	CodeChallengeExpired   ErrorCode = "challenge_expired"
	CodeCodeMismatch       ErrorCode = "code_mismatch"
	CodeTooManyAttempts    ErrorCode = "too_many_attempts"
	CodeRefreshRevoked     ErrorCode = "refresh_revoked"
	CodeTokenInvalid       ErrorCode = "token_invalid"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeAccountExists      ErrorCode = "account_exists"
	CodeLinkInvalid        ErrorCode = "link_invalid"
	CodePasswordPolicy     ErrorCode = "password_policy"
	CodeInvalidInput       ErrorCode = "invalid_input"
	CodeUnavailable        ErrorCode = "service_unavailable"
	CodeInternal           ErrorCode = "internal_error"
)

var codeMessages = map[ErrorCode]string{
	CodeInvalidCredentials: "Invalid email or password.",
	CodeAccountInactive:    "This account is not active. Please contact support.",
	CodeNoChallenge:        "No verification code is pending. Please sign in again.",
	CodeChallengeExpired:   "The verification code has expired. Please request a new one.",
	CodeCodeMismatch:       "The verification code is incorrect.",
	CodeTooManyAttempts:    "Too many incorrect codes. Please sign in again.",
	CodeRefreshRevoked:     "Your session has been revoked. Please sign in again.",
	CodeTokenInvalid:       "Your session is invalid or has expired. Please sign in again.",
	CodeUnauthorized:       "Authentication required.",
	CodeRateLimited:        "Too many attempts. Please wait and try again.",
	CodeAccountExists:      "An account with this email already exists.",
	CodeLinkInvalid:        "This link is invalid or has expired.",
	CodePasswordPolicy:     "The password does not meet the requirements.",
	CodeInvalidInput:       "The request is invalid.",
	CodeUnavailable:        "The service is temporarily unavailable. Please try again.",
	CodeInternal:           "Something went wrong. Please try again.",
}

// Message returns the human-readable text for c.
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[CodeInternal]
}

var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrAccountInactive, CodeAccountInactive},
	{ErrNoChallenge, CodeNoChallenge},
	{ErrChallengeExpired, CodeChallengeExpired},
	{ErrCodeMismatch, CodeCodeMismatch},
	{ErrTooManyAttempts, CodeTooManyAttempts},
	{ErrRefreshRevoked, CodeRefreshRevoked},
	{ErrTokenInvalid, CodeTokenInvalid},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrRateLimited, CodeRateLimited},
	{rate.ErrRateLimited, CodeRateLimited},
	{ErrAccountExists, CodeAccountExists},
	{ErrLinkInvalid, CodeLinkInvalid},
	{ErrPasswordPolicy, CodePasswordPolicy},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrStoreUnavailable, CodeUnavailable},
	{ErrDeviceUnavailable, CodeUnavailable},
}

// ErrorCodeOf maps err to its stable code. Unknown errors map to CodeInternal.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
