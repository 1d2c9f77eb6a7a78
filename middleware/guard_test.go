package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	siteAuth "github.com/MrEthical07/siteAuth"
)

type stubValidator map[string]*siteAuth.Identity

func (s stubValidator) ValidateAccess(_ context.Context, token string) (*siteAuth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, siteAuth.ErrTokenInvalid
}

func whoami(w http.ResponseWriter, r *http.Request) {
	if id, ok := siteAuth.IdentityFromContext(r.Context()); ok {
		_, _ = w.Write([]byte(id.UserID))
		return
	}
	_, _ = w.Write([]byte("anonymous"))
}

func TestGuard(t *testing.T) {
	v := stubValidator{"good": {UserID: "u1", Role: "engineer"}}
	h := Guard(v)(http.HandlerFunc(whoami))

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"Bearer good", http.StatusOK, "u1"},
		{"bearer good", http.StatusOK, "u1"},
		{"Bearer bad", http.StatusUnauthorized, "token_invalid"},
		{"Basic dXNlcjpwYXNz", http.StatusUnauthorized, "unauthorized"},
		{"Bearer ", http.StatusUnauthorized, "unauthorized"},
		{"", http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status || !strings.Contains(rec.Body.String(), tc.body) {
			t.Fatalf("%q: got %d %q", tc.header, rec.Code, rec.Body.String())
		}
	}
}

func TestGuardNilValidator(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	Guard(nil)(http.HandlerFunc(whoami)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("nil validator must reject, got %d", rec.Code)
	}
}

func TestOptional(t *testing.T) {
	v := stubValidator{"good": {UserID: "u1"}}
	h := Optional(v)(http.HandlerFunc(whoami))

	for header, want := range map[string]string{
		"Bearer good": "u1",
		"Bearer bad":  "anonymous",
		"":            "anonymous",
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("%q: got %d %q", header, rec.Code, rec.Body.String())
		}
	}
}
