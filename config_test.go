package siteAuth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = "test-access-secret-0123456789abcdef"
	cfg.JWT.RefreshSecret = "test-refresh-secret-0123456789abcdef"
	cfg.Password = PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Security.ProductionMode = false
	return cfg
}

func TestDefaultConfigValidatesWithSecrets(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.JWT.AccessTTL != 900*time.Second || cfg.JWT.RefreshTTLLong != 30*24*time.Hour || cfg.JWT.RefreshTTLShort != 7*24*time.Hour {
		t.Fatalf("unexpected token defaults: %+v", cfg.JWT)
	}
	if cfg.DeviceTrust.TTL != 30*24*time.Hour || cfg.DeviceTrust.IPPolicy != "prefix-2" {
		t.Fatalf("unexpected device defaults: %+v", cfg.DeviceTrust)
	}
	if cfg.Challenge.TTL != 5*time.Minute || cfg.Challenge.CodeDigits != 6 {
		t.Fatalf("unexpected challenge defaults: %+v", cfg.Challenge)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"missing secrets":     func(c *Config) { c.JWT.AccessSecret = "" },
		"equal secrets":       func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret },
		"zero access ttl":     func(c *Config) { c.JWT.AccessTTL = 0 },
		"short > long":        func(c *Config) { c.JWT.RefreshTTLShort = 40 * 24 * time.Hour },
		"bad ip policy":       func(c *Config) { c.DeviceTrust.IPPolicy = "strict" },
		"relative refresh":    func(c *Config) { c.Cookie.RefreshPath = "api/refresh" },
		"force without url":   func(c *Config) { c.Email.ForceProductionLinks = true },
		"bad public url":      func(c *Config) { c.Email.PublicURL = "ftp://x" },
		"weak password cost":  func(c *Config) { c.Password.Memory = 1 },
		"throttle w/o window": func(c *Config) { c.Security.LoginThrottleMax = 3; c.Security.LoginThrottleWindow = 0 },
		"short prod secrets": func(c *Config) {
			c.Security.ProductionMode = true
			c.JWT.AccessSecret = "short-a"
			c.JWT.RefreshSecret = "short-r"
		},
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"APP_ENV":                 "production",
		"ACCESS_TOKEN_TTL":        "600",
		"REFRESH_TOKEN_TTL_LONG":  "60d",
		"REFRESH_TOKEN_TTL_SHORT": "72h",
		"TRUSTED_DEVICE_TTL":      "14d",
		"JWT_ACCESS_SECRET":       "env-access",
		"JWT_REFRESH_SECRET":      "env-refresh",
		"COOKIE_DOMAIN":           ".corp.example",
		"CANONICAL_DOMAIN":        "example.com",
		"TRUST_IP_POLICY":         "exact",
		"PRODUCTION_URL":          "https://app.example.com",
		"FORCE_PRODUCTION_LINKS":  "true",
		"OTP_MAX_ATTEMPTS":        "5",
		"REFRESH_REUSE_DETECTION": "1",
		"LOGIN_THROTTLE_MAX":      "10",
	}
	cfg := DefaultConfig()
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if !cfg.Security.ProductionMode || cfg.JWT.AccessTTL != 600*time.Second {
		t.Fatalf("env not applied: %+v", cfg.JWT)
	}
	if cfg.JWT.RefreshTTLLong != 60*24*time.Hour || cfg.JWT.RefreshTTLShort != 72*time.Hour || cfg.DeviceTrust.TTL != 14*24*time.Hour {
		t.Fatalf("durations not applied")
	}
	if cfg.Cookie.DomainOverride != ".corp.example" || cfg.Cookie.CanonicalDomain != "example.com" || cfg.DeviceTrust.IPPolicy != "exact" {
		t.Fatalf("cookie/device env not applied")
	}
	if !cfg.Email.ForceProductionLinks || cfg.Challenge.MaxAttempts != 5 || !cfg.Security.RefreshReuseDetection || cfg.Security.LoginThrottleMax != 10 {
		t.Fatalf("flags not applied")
	}
	if cfg.JWT.Issuer != "siteauth" {
		t.Fatalf("unset key changed issuer to %q", cfg.JWT.Issuer)
	}
}

func TestProductionModeIsOnUnlessDevelopment(t *testing.T) {
	if !DefaultConfig().Security.ProductionMode {
		t.Fatal("default config must run in production mode")
	}

	cases := map[string]bool{
		"":            true,
		"development": false,
		"Dev":         false,
		" local ":     false,
		"test":        false,
		"staging":     true,
		"production":  true,
		"developer":   true,
	}
	for value, want := range cases {
		cfg := DefaultConfig()
		err := ApplyEnv(&cfg, func(k string) string {
			if k == "APP_ENV" {
				return value
			}
			return ""
		})
		if err != nil {
			t.Fatalf("APP_ENV=%q: %v", value, err)
		}
		if cfg.Security.ProductionMode != want {
			t.Fatalf("APP_ENV=%q: ProductionMode = %v, want %v", value, cfg.Security.ProductionMode, want)
		}
	}

	// A config file cannot lose production mode by omitting the key.
	path := filepath.Join(t.TempDir(), "siteauth.yaml")
	if err := os.WriteFile(path, []byte("jwt:\n  issuer: tracker\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if !cfg.Security.ProductionMode {
		t.Fatal("omitted production_mode must keep the default")
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(&cfg, func(k string) string {
		if k == "ACCESS_TOKEN_TTL" {
			return "soon"
		}
		return ""
	})
	if err == nil || !strings.Contains(err.Error(), "ACCESS_TOKEN_TTL") {
		t.Fatalf("expected error naming the key, got %v", err)
	}
	if cfg.JWT.AccessTTL != 900*time.Second {
		t.Fatal("bad value must not overwrite the default")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siteauth.yaml")
	doc := `
jwt:
  access_ttl: 10m
  issuer: tracker
device_trust:
  ip_policy: prefix-1
cookie:
  canonical_domain: example.com
security:
  refresh_reuse_detection: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.JWT.AccessTTL != 10*time.Minute || cfg.JWT.Issuer != "tracker" {
		t.Fatalf("jwt section not loaded: %+v", cfg.JWT)
	}
	if cfg.JWT.RefreshTTLLong != 30*24*time.Hour {
		t.Fatal("absent key must keep default")
	}
	if cfg.DeviceTrust.IPPolicy != "prefix-1" || cfg.Cookie.CanonicalDomain != "example.com" || !cfg.Security.RefreshReuseDetection {
		t.Fatalf("sections not loaded: %+v", cfg)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), DefaultConfig()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"900":  900 * time.Second,
		"30d":  30 * 24 * time.Hour,
		"15m":  15 * time.Minute,
		" 2h ": 2 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuration(%q) = %v, %v", in, got, err)
		}
	}
	for _, bad := range []string{"xd", "later", ""} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("ParseDuration(%q): expected error", bad)
		}
	}
}
