package siteAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/internal/audit"
	"github.com/MrEthical07/siteAuth/jwt"
)

// Account and AccountStatus are re-exported so callers rarely need the credential package.
type (
	Account       = credential.Account
	AccountStatus = credential.Status
)

const (
	AccountActive   = credential.StatusActive
	AccountInactive = credential.StatusInactive
)

// AuditEvent, AuditKind and AuditSink are re-exported from the dispatcher package.
type (
	AuditEvent = audit.Event
	AuditKind  = audit.Kind
	AuditSink  = audit.Sink
)

// LifetimeClass selects between the long and short refresh lifetimes.
type LifetimeClass = jwt.LifetimeClass

const (
	LifetimeLong  = jwt.ClassLong
	LifetimeShort = jwt.ClassShort
)

// EmailTransport delivers HTML email. sent is false when the message was not
// accepted; the engine logs and continues either way.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, htmlBody string) (sent bool, err error)
}

// User is the public view of an account returned to clients.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func userOf(acc *Account) *User {
	return &User{ID: acc.ID, Email: acc.Email, Role: acc.Role, Status: acc.Status.String()}
}

// Identity is what a verified access token proves.
type Identity struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// TokenPair is the output of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	ExpiresIn        int64 // seconds
	RefreshToken     string
	RefreshExpiresAt time.Time
	Class            LifetimeClass
}

// LoginResult is returned by Login and VerifySecondFactor.
type LoginResult struct {
	// RequiresSecondFactor is set when a one-time code was issued instead of tokens.
	RequiresSecondFactor bool
	Tokens               *TokenPair
	User                 *User
	// TrustToken is the raw device token to set as the trust cookie, if any.
	TrustToken     string
	TrustExpiresAt time.Time
	// DevCode echoes the one-time code outside production.
	DevCode string
}

// CodeResult is returned by ResendCode.
type CodeResult struct {
	DevCode string
}

// LinkResult is returned by flows that email a link.
type LinkResult struct {
	DevLink string
}

// CreateAccountRequest describes a new account.
type CreateAccountRequest struct {
	Email    string
	Password string
	// Role defaults to Account.DefaultRole.
	Role string
}

// CreateAccountResult is returned by CreateAccount.
type CreateAccountResult struct {
	User    *User
	DevLink string
}

// DeviceInfo is the client-safe view of a trusted device.
type DeviceInfo struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

// RevokeDevicesRequest selects trusted devices to delete.
type RevokeDevicesRequest struct {
	All bool
	IDs []string
	// CurrentTrustToken is the raw trust cookie of the calling client, if any.
	CurrentTrustToken string
}

// RevokeDevicesResult reports what RevokeTrustedDevices did.
type RevokeDevicesResult struct {
	Revoked int
	// ClearTrustCookie is set when the caller's own device was revoked.
	ClearTrustCookie bool
}
