package cookie

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestComputeLoopback(t *testing.T) {
	cfg := Config{CanonicalDomain: "example.com", DomainOverride: "ignored.example"}
	for _, host := range []string{"localhost", "localhost:5173", "127.0.0.1:8080", "[::1]:3000", "api.localhost"} {
		got := Compute(Request{Host: host, Proto: "http"}, cfg)
		if got.Secure || got.SameSite != http.SameSiteLaxMode || got.Domain != "" {
			t.Fatalf("host %q: %+v", host, got)
		}
	}
}

func TestComputeCanonicalSubdomain(t *testing.T) {
	got := Compute(Request{Host: "app.example.com", Proto: "https"}, Config{CanonicalDomain: "example.com"})
	if !got.Secure || got.SameSite != http.SameSiteNoneMode || got.Domain != ".example.com" {
		t.Fatalf("unexpected attributes: %+v", got)
	}

	apex := Compute(Request{Host: "example.com"}, Config{CanonicalDomain: ".Example.com"})
	if apex.Domain != ".example.com" {
		t.Fatalf("apex domain = %q", apex.Domain)
	}
}

func TestComputeForeignHostOmitsDomain(t *testing.T) {
	cases := []string{"preview-123.hosting.app", "notexample.com", "example.com.evil.io"}
	for _, host := range cases {
		got := Compute(Request{Host: host, Proto: "https"}, Config{CanonicalDomain: "example.com"})
		if !got.Secure || got.SameSite != http.SameSiteNoneMode || got.Domain != "" {
			t.Fatalf("host %q: %+v", host, got)
		}
	}
}

func TestComputeOverrideWins(t *testing.T) {
	got := Compute(Request{Host: "app.example.com"}, Config{CanonicalDomain: "example.com", DomainOverride: ".corp.example"})
	if got.Domain != ".corp.example" {
		t.Fatalf("domain = %q", got.Domain)
	}
}

func TestComputeHonoursForwardedHeaders(t *testing.T) {
	req := Request{
		Host:           "127.0.0.1:8080",
		Proto:          "http",
		ForwardedHost:  "app.example.com, proxy.internal",
		ForwardedProto: "https",
	}
	got := Compute(req, Config{CanonicalDomain: "example.com"})
	if got.Host != "app.example.com" || got.Scheme != "https" || !got.Secure || got.Domain != ".example.com" {
		t.Fatalf("unexpected attributes: %+v", got)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	req := Request{Host: "app.example.com", Proto: "https"}
	cfg := Config{CanonicalDomain: "example.com"}
	first := Compute(req, cfg)
	for i := 0; i < 10; i++ {
		if Compute(req, cfg) != first {
			t.Fatal("Compute must be deterministic")
		}
	}
}

func TestFromHTTP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "https://app.example.com/api/auth/login", nil)
	r.TLS = &tls.ConnectionState{}
	r.Header.Set("X-Forwarded-Host", "www.example.com")
	got := FromHTTP(r)
	if got.Host != "app.example.com" || got.Proto != "https" || got.ForwardedHost != "www.example.com" {
		t.Fatalf("FromHTTP = %+v", got)
	}
}

func TestCookieBuilders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	attrs := Compute(Request{Host: "app.example.com"}, Config{CanonicalDomain: "example.com"})

	refresh := Refresh(attrs, "/api/auth/refresh-token", "tok", now.Add(7*24*time.Hour), now)
	if refresh.Name != RefreshName || refresh.Path != "/api/auth/refresh-token" || !refresh.HttpOnly || !refresh.Secure {
		t.Fatalf("refresh cookie = %+v", refresh)
	}
	if refresh.MaxAge != 7*24*3600 || refresh.Domain != ".example.com" {
		t.Fatalf("refresh cookie lifetime/domain = %d %q", refresh.MaxAge, refresh.Domain)
	}

	trust := Trust(attrs, "raw", now.Add(time.Hour), now)
	if trust.Name != TrustName || trust.Path != "/" || !trust.HttpOnly {
		t.Fatalf("trust cookie = %+v", trust)
	}

	cleared := ClearRefresh(attrs, "/api/auth/refresh-token")
	if cleared.MaxAge != -1 || cleared.Value != "" || cleared.Path != "/api/auth/refresh-token" {
		t.Fatalf("cleared cookie = %+v", cleared)
	}
	if !strings.Contains(ClearTrust(attrs).String(), "Max-Age=0") {
		t.Fatalf("clear trust header = %s", ClearTrust(attrs).String())
	}
}
