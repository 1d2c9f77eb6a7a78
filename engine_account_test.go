package siteAuth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/MrEthical07/siteAuth/internal/audit"
)

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link %q has no token", link)
	}
	return token
}

func TestCreateAccountWithActivation(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Account.RequireActivation = true
	})
	ctx := clientCtx("203.0.113.7", chromeUA)

	res, err := env.engine.CreateAccount(ctx, CreateAccountRequest{Email: " New@Example.com ", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if res.User.Email != "new@example.com" || res.User.Role != "member" || res.User.Status != "inactive" {
		t.Fatalf("unexpected user %+v", res.User)
	}
	if !strings.HasPrefix(res.DevLink, "http://localhost:5173/activate?token=") {
		t.Fatalf("unexpected activation link %q", res.DevLink)
	}
	if env.mailer.count() != 1 {
		t.Fatal("expected an activation email")
	}

	if _, err := env.engine.Login(ctx, "new@example.com", testPassword, ""); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("login before activation: %v", err)
	}

	token := tokenFromLink(t, res.DevLink)
	if err := env.engine.ActivateAccount(ctx, token); err != nil {
		t.Fatalf("ActivateAccount: %v", err)
	}
	if err := env.engine.ActivateAccount(ctx, token); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("activation link reused: %v", err)
	}
	if _, err := env.engine.Login(ctx, "new@example.com", testPassword, ""); err != nil {
		t.Fatalf("login after activation: %v", err)
	}
	waitForAudit(t, env.sink, audit.KindAccountActivated)
}

func TestCreateAccountValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "taken@example.com", AccountActive)

	cases := []struct {
		req  CreateAccountRequest
		want error
	}{
		{CreateAccountRequest{Email: "not-an-email", Password: testPassword}, ErrInvalidInput},
		{CreateAccountRequest{Email: "short@example.com", Password: "1234"}, ErrPasswordPolicy},
		{CreateAccountRequest{Email: "huge@example.com", Password: strings.Repeat("x", 2048)}, ErrPasswordPolicy},
		{CreateAccountRequest{Email: "TAKEN@example.com", Password: testPassword}, ErrAccountExists},
	}
	for _, tc := range cases {
		if _, err := env.engine.CreateAccount(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("CreateAccount(%s) = %v, want %v", tc.req.Email, err, tc.want)
		}
	}

	res, err := env.engine.CreateAccount(ctx, CreateAccountRequest{Email: "pm@example.com", Password: testPassword, Role: "manager"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if res.User.Status != "active" || res.User.Role != "manager" || res.DevLink != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDeactivationRevokesRefresh(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	if err := env.engine.SetAccountStatus(ctx, acc.ID, AccountInactive); err != nil {
		t.Fatalf("SetAccountStatus: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("refresh after deactivation: %v", err)
	}
	if _, err := env.engine.Login(ctx, "pat@example.com", testPassword, ""); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("login after deactivation: %v", err)
	}
	if err := env.engine.SetAccountStatus(ctx, "missing", AccountActive); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("missing account: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	if err := env.engine.ChangePassword(ctx, acc.ID, "wrong", "brand new password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: %v", err)
	}
	if err := env.engine.ChangePassword(ctx, acc.ID, testPassword, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak new password: %v", err)
	}
	if err := env.engine.ChangePassword(ctx, acc.ID, testPassword, "brand new password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("refresh after password change: %v", err)
	}
	if _, err := env.engine.Login(ctx, "pat@example.com", testPassword, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := env.engine.Login(ctx, "pat@example.com", "brand new password", ""); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", true)

	sent := env.mailer.count()
	silent, err := env.engine.RequestPasswordReset(ctx, "nobody@example.com")
	if err != nil || silent.DevLink != "" || env.mailer.count() != sent {
		t.Fatalf("unknown email must be silent: %+v %v", silent, err)
	}

	res, err := env.engine.RequestPasswordReset(ctx, "PAT@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if !strings.HasPrefix(res.DevLink, "http://localhost:5173/reset-password?token=") {
		t.Fatalf("unexpected reset link %q", res.DevLink)
	}
	token := tokenFromLink(t, res.DevLink)

	if err := env.engine.ActivateAccount(ctx, token); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("reset token used as activation token: %v", err)
	}
	if err := env.engine.ConfirmPasswordReset(ctx, token, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak password: %v", err)
	}
	if err := env.engine.ConfirmPasswordReset(ctx, token, "a much better password"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if err := env.engine.ConfirmPasswordReset(ctx, token, "a much better password"); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("reset link reused: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("refresh after reset: %v", err)
	}
	devices, err := env.engine.ListTrustedDevices(ctx, acc.ID, login.TrustToken)
	if err != nil || len(devices) != 0 {
		t.Fatalf("trusted devices must be revoked after reset: %+v %v", devices, err)
	}
	if _, err := env.engine.Login(ctx, "pat@example.com", "a much better password", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestProductionLinksForced(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Email.ProductionURL = "https://tracker.example.com"
		cfg.Email.ForceProductionLinks = true
	})
	env.seed(t, "pat@example.com", AccountActive)

	res, err := env.engine.RequestPasswordReset(context.Background(), "pat@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if !strings.HasPrefix(res.DevLink, "https://tracker.example.com/reset-password?token=") {
		t.Fatalf("expected production link, got %q", res.DevLink)
	}
}

func TestErrorCodes(t *testing.T) {
	cases := map[error]ErrorCode{
		ErrInvalidCredentials: CodeInvalidCredentials,
		ErrAccountInactive:    CodeAccountInactive,
		ErrNoChallenge:        CodeNoChallenge,
		ErrChallengeExpired:   CodeChallengeExpired,
		ErrCodeMismatch:       CodeCodeMismatch,
		ErrRefreshRevoked:     CodeRefreshRevoked,
		ErrTokenInvalid:       CodeTokenInvalid,
		ErrUnauthorized:       CodeUnauthorized,
		errors.New("boom"):    CodeInternal,
	}
	for err, want := range cases {
		if got := ErrorCodeOf(err); got != want {
			t.Fatalf("ErrorCodeOf(%v) = %s, want %s", err, got, want)
		}
		if got := ErrorCodeOf(err); got.Message() == "" {
			t.Fatalf("%s has no message", got)
		}
	}
	if ErrorCodeOf(nil) != "" {
		t.Fatal("nil error has no code")
	}
	if CodeAccountInactive.Message() == CodeInvalidCredentials.Message() {
		t.Fatal("inactive accounts get a specific message")
	}
}
