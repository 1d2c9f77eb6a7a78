package siteAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/siteAuth/internal/audit"
)

func TestRefreshRotatesAndPreservesClass(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)

	for _, remember := range []bool{true, false} {
		login := env.loginWithCode(t, ctx, "pat@example.com", remember)
		env.clock.Advance(time.Second)

		pair, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if pair.Class != login.Tokens.Class {
			t.Fatalf("class changed from %s to %s", login.Tokens.Class, pair.Class)
		}
		if pair.RefreshToken == login.Tokens.RefreshToken {
			t.Fatal("refresh token must rotate")
		}
		if pair.ExpiresIn != 900 {
			t.Fatalf("ExpiresIn = %d", pair.ExpiresIn)
		}
		if _, err := env.engine.ValidateAccess(ctx, pair.AccessToken); err != nil {
			t.Fatalf("ValidateAccess: %v", err)
		}
	}
}

func TestRefreshRevokedAfterTokenVersionBump(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	if err := env.engine.RevokeSessions(ctx, acc.ID); err != nil {
		t.Fatalf("RevokeSessions: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("got %v, want ErrRefreshRevoked", err)
	}

	// The access token is stateless and outlives the revocation.
	if _, err := env.engine.ValidateAccess(ctx, login.Tokens.AccessToken); err != nil {
		t.Fatalf("access token should stay valid until expiry: %v", err)
	}

	if err := env.engine.RevokeSessions(ctx, "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("RevokeSessions(missing) = %v", err)
	}
}

func TestRefreshRejectsInvalidTokens(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	for _, token := range []string{"", "garbage", login.Tokens.AccessToken} {
		if _, err := env.engine.Refresh(ctx, token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Refresh(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}

	env.clock.Advance(7*24*time.Hour + time.Second)
	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expired refresh token: %v", err)
	}
}

func TestRefreshReuseDetection(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Security.RefreshReuseDetection = true
	})
	env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	rotated, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// A second login gives an independent lineage that must also die.
	other := env.loginWithCode(t, ctx, "pat@example.com", false)

	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("replayed token: got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("latest token after reuse: got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, other.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("other lineage after reuse: got %v", err)
	}
	waitForAudit(t, env.sink, audit.KindRefreshReuse)
	if env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatal("expected one reuse detection")
	}
}

func TestRefreshReuseDetectionWithRedis(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, withRedis(rdb), func(cfg *Config, _ *Builder) {
		cfg.Security.RefreshReuseDetection = true
	})
	env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", true)

	rotated, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("latest token should rotate: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("replay: got %v", err)
	}
}

func TestLogoutEndsLineageAndNeverFails(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Security.RefreshReuseDetection = true
	})
	acc := env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	env.engine.Logout(ctx, "garbage")
	env.engine.Logout(ctx, "")

	authed := WithIdentity(ctx, &Identity{UserID: acc.ID, Role: acc.Role})
	env.engine.Logout(authed, login.Tokens.RefreshToken)
	ev := waitForAudit(t, env.sink, audit.KindLogout)
	if ev.ActorID != acc.ID {
		t.Fatalf("unexpected logout event %+v", ev)
	}

	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("refresh after logout: got %v", err)
	}
	if env.engine.MetricsSnapshot().Counters[MetricLogout] != 3 {
		t.Fatal("every logout counts")
	}
}

func TestValidateAccessBoundaries(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)
	login := env.loginWithCode(t, ctx, "pat@example.com", false)

	id, err := env.engine.ValidateAccess(ctx, login.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id.UserID != login.User.ID || id.Role != "engineer" {
		t.Fatalf("unexpected identity %+v", id)
	}

	env.clock.Advance(899 * time.Second)
	if _, err := env.engine.ValidateAccess(ctx, login.Tokens.AccessToken); err != nil {
		t.Fatalf("valid at +899s: %v", err)
	}
	env.clock.Advance(2 * time.Second)
	if _, err := env.engine.ValidateAccess(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("at +901s: got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token as access: got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token: got %v", err)
	}
}

func TestTrustedDeviceListAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seed(t, "pat@example.com", AccountActive)
	chrome := clientCtx("203.0.113.7", chromeUA)
	firefox := clientCtx("203.0.113.7", firefoxUA)

	first := env.loginWithCode(t, chrome, "pat@example.com", true)
	env.clock.Advance(time.Minute)
	second := env.loginWithCode(t, firefox, "pat@example.com", true)

	devices, err := env.engine.ListTrustedDevices(chrome, acc.ID, first.TrustToken)
	if err != nil {
		t.Fatalf("ListTrustedDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	var currentID, otherID string
	for _, d := range devices {
		if d.Current {
			currentID = d.ID
		} else {
			otherID = d.ID
		}
		if strings.Contains(d.Label, first.TrustToken) {
			t.Fatal("device listing leaked a token")
		}
	}
	if currentID == "" || otherID == "" {
		t.Fatalf("expected exactly one current device: %+v", devices)
	}

	res, err := env.engine.RevokeTrustedDevices(chrome, acc.ID, RevokeDevicesRequest{IDs: []string{otherID}, CurrentTrustToken: first.TrustToken})
	if err != nil {
		t.Fatalf("RevokeTrustedDevices: %v", err)
	}
	if res.Revoked != 1 || res.ClearTrustCookie {
		t.Fatalf("revoking another device: %+v", res)
	}
	if r, _ := env.engine.Login(firefox, "pat@example.com", testPassword, second.TrustToken); !r.RequiresSecondFactor {
		t.Fatal("revoked device must not be trusted")
	}

	res, err = env.engine.RevokeTrustedDevices(chrome, acc.ID, RevokeDevicesRequest{All: true, CurrentTrustToken: first.TrustToken})
	if err != nil {
		t.Fatalf("RevokeTrustedDevices(all): %v", err)
	}
	if res.Revoked != 1 || !res.ClearTrustCookie {
		t.Fatalf("revoking all including current: %+v", res)
	}
	waitForAudit(t, env.sink, audit.KindDevicesRevoked)

	if _, err := env.engine.RevokeTrustedDevices(chrome, acc.ID, RevokeDevicesRequest{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty request: got %v", err)
	}
	if _, err := env.engine.ListTrustedDevices(chrome, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous list: got %v", err)
	}
}

func TestTrustedDevicesWithRedis(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, withRedis(rdb))
	acc := env.seed(t, "pat@example.com", AccountActive)
	ctx := clientCtx("203.0.113.7", chromeUA)

	login := env.loginWithCode(t, ctx, "pat@example.com", true)
	trusted, err := env.engine.Login(ctx, "pat@example.com", testPassword, login.TrustToken)
	if err != nil || trusted.RequiresSecondFactor {
		t.Fatalf("trusted login over redis: %+v %v", trusted, err)
	}

	devices, err := env.engine.ListTrustedDevices(ctx, acc.ID, login.TrustToken)
	if err != nil || len(devices) != 1 || !devices[0].Current {
		t.Fatalf("ListTrustedDevices: %+v %v", devices, err)
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("empty context has no identity")
	}
	ctx := WithIdentity(context.Background(), &Identity{UserID: "u1", Role: "manager"})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID != "u1" {
		t.Fatalf("IdentityFromContext = %+v, %v", id, ok)
	}
}
