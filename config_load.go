package siteAuth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile overlays the YAML document at path onto base.
// Keys absent from the file keep their value from base.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays recognised environment variables onto cfg. getenv is
// usually os.Getenv; empty values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var firstErr error
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", key, err)
		}
	}
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			fail(key, err)
			return
		}
		*dst = d
	}
	boolean := func(key string, dst *bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(key, err)
			return
		}
		*dst = b
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(key, err)
			return
		}
		*dst = n
	}

	// Only a named development environment relaxes production mode.
	if env := strings.ToLower(strings.TrimSpace(getenv("APP_ENV"))); env != "" {
		switch env {
		case "development", "dev", "local", "test":
			cfg.Security.ProductionMode = false
		default:
			cfg.Security.ProductionMode = true
		}
	}

	dur("ACCESS_TOKEN_TTL", &cfg.JWT.AccessTTL)
	dur("REFRESH_TOKEN_TTL_LONG", &cfg.JWT.RefreshTTLLong)
	dur("REFRESH_TOKEN_TTL_SHORT", &cfg.JWT.RefreshTTLShort)
	dur("TRUSTED_DEVICE_TTL", &cfg.DeviceTrust.TTL)
	str("JWT_ACCESS_SECRET", &cfg.JWT.AccessSecret)
	str("JWT_REFRESH_SECRET", &cfg.JWT.RefreshSecret)
	str("JWT_ISSUER", &cfg.JWT.Issuer)

	str("COOKIE_DOMAIN", &cfg.Cookie.DomainOverride)
	str("CANONICAL_DOMAIN", &cfg.Cookie.CanonicalDomain)
	str("REFRESH_COOKIE_PATH", &cfg.Cookie.RefreshPath)
	str("TRUST_IP_POLICY", &cfg.DeviceTrust.IPPolicy)

	str("PUBLIC_URL", &cfg.Email.PublicURL)
	str("PRODUCTION_URL", &cfg.Email.ProductionURL)
	boolean("FORCE_PRODUCTION_LINKS", &cfg.Email.ForceProductionLinks)

	dur("OTP_TTL", &cfg.Challenge.TTL)
	integer("OTP_MAX_ATTEMPTS", &cfg.Challenge.MaxAttempts)

	boolean("REQUIRE_ACTIVATION", &cfg.Account.RequireActivation)
	boolean("REFRESH_REUSE_DETECTION", &cfg.Security.RefreshReuseDetection)
	integer("LOGIN_THROTTLE_MAX", &cfg.Security.LoginThrottleMax)
	dur("LOGIN_THROTTLE_WINDOW", &cfg.Security.LoginThrottleWindow)

	return firstErr
}

// ParseDuration accepts Go duration syntax ("15m"), a plain number of
// seconds ("900"), or whole days ("30d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
