package siteAuth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/siteAuth/devicetrust"
	"github.com/MrEthical07/siteAuth/password"
)

// Config is the engine configuration. Build it with [DefaultConfig], then layer
// a file with [LoadConfigFile] and the environment with [ApplyEnv].
type Config struct {
	JWT         JWTConfig         `yaml:"jwt"`
	Challenge   ChallengeConfig   `yaml:"challenge"`
	DeviceTrust DeviceTrustConfig `yaml:"device_trust"`
	Cookie      CookieConfig      `yaml:"cookie"`
	Email       EmailConfig       `yaml:"email"`
	Account     AccountConfig     `yaml:"account"`
	Password    PasswordConfig    `yaml:"password"`
	Security    SecurityConfig    `yaml:"security"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

/*
====================================
TOKENS
====================================
*/

// JWTConfig controls access and refresh token issuance.
type JWTConfig struct {
	AccessSecret    string        `yaml:"access_secret"`
	RefreshSecret   string        `yaml:"refresh_secret"`
	AccessTTL       time.Duration `yaml:"access_ttl"`
	RefreshTTLLong  time.Duration `yaml:"refresh_ttl_long"`
	RefreshTTLShort time.Duration `yaml:"refresh_ttl_short"`
	Issuer          string        `yaml:"issuer"`
	Audience        string        `yaml:"audience"`
	Leeway          time.Duration `yaml:"leeway"`
	KeyID           string        `yaml:"key_id"`
}

/*
====================================
SECOND FACTOR & DEVICES
====================================
*/

// ChallengeConfig controls the emailed one-time code.
type ChallengeConfig struct {
	CodeDigits int           `yaml:"code_digits"`
	TTL        time.Duration `yaml:"ttl"`
	// MaxAttempts discards a challenge after this many wrong codes. 0 means unlimited.
	MaxAttempts int    `yaml:"max_attempts"`
	RedisPrefix string `yaml:"redis_prefix"`
	// MaxSends limits codes sent per email within SendWindow. 0 disables the limit.
	MaxSends   int           `yaml:"max_sends"`
	SendWindow time.Duration `yaml:"send_window"`
}

// DeviceTrustConfig controls "remember this device".
type DeviceTrustConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// IPPolicy is one of none, prefix-N or exact.
	IPPolicy    string `yaml:"ip_policy"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// CookieConfig controls cookie scoping.
type CookieConfig struct {
	DomainOverride  string `yaml:"domain_override"`
	CanonicalDomain string `yaml:"canonical_domain"`
	RefreshPath     string `yaml:"refresh_path"`
}

/*
====================================
ACCOUNTS & EMAIL
====================================
*/

// EmailConfig controls outbound messages and the links they carry.
type EmailConfig struct {
	ProductName          string        `yaml:"product_name"`
	PublicURL            string        `yaml:"public_url"`
	ProductionURL        string        `yaml:"production_url"`
	ForceProductionLinks bool          `yaml:"force_production_links"`
	ActivationPath       string        `yaml:"activation_path"`
	ResetPath            string        `yaml:"reset_path"`
	SendTimeout          time.Duration `yaml:"send_timeout"`
}

// AccountConfig controls the account lifecycle.
type AccountConfig struct {
	DefaultRole       string        `yaml:"default_role"`
	RequireActivation bool          `yaml:"require_activation"`
	ActivationTTL     time.Duration `yaml:"activation_ttl"`
	ResetTTL          time.Duration `yaml:"reset_ttl"`
	MinPasswordLength int           `yaml:"min_password_length"`
	LinkRedisPrefix   string        `yaml:"link_redis_prefix"`
}

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 `yaml:"memory_kib"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

func (p PasswordConfig) params() password.Params {
	return password.Params{
		Memory:      p.Memory,
		Time:        p.Time,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	}
}

/*
====================================
SECURITY & OBSERVABILITY
====================================
*/

// SecurityConfig holds deployment-wide hardening switches.
type SecurityConfig struct {
	// ProductionMode hides devCode/devLink and enforces secret strength. It is
	// on by default; development setups turn it off explicitly.
	ProductionMode bool `yaml:"production_mode"`
	// RefreshReuseDetection tracks refresh lineages and revokes the account's
	// sessions when a superseded refresh token is presented.
	RefreshReuseDetection bool   `yaml:"refresh_reuse_detection"`
	LineageRedisPrefix    string `yaml:"lineage_redis_prefix"`
	// LoginThrottleMax is the number of failed logins per window. 0 disables throttling.
	LoginThrottleMax    int           `yaml:"login_throttle_max"`
	LoginThrottleWindow time.Duration `yaml:"login_throttle_window"`
	ThrottleByIP        bool          `yaml:"throttle_by_ip"`
}

type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	DropIfFull    bool          `yaml:"drop_if_full"`
	RecordTimeout time.Duration `yaml:"record_timeout"`
}

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns the documented defaults. Secrets are empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:       900 * time.Second,
			RefreshTTLLong:  30 * 24 * time.Hour,
			RefreshTTLShort: 7 * 24 * time.Hour,
			Issuer:          "siteauth",
		},
		Challenge: ChallengeConfig{
			CodeDigits:  6,
			TTL:         5 * time.Minute,
			RedisPrefix: "sac",
			SendWindow:  15 * time.Minute,
		},
		DeviceTrust: DeviceTrustConfig{
			TTL:         30 * 24 * time.Hour,
			IPPolicy:    devicetrust.DefaultIPPolicy().String(),
			RedisPrefix: "std",
		},
		Cookie: CookieConfig{
			RefreshPath: "/api/auth/refresh-token",
		},
		Email: EmailConfig{
			ProductName:    "Site Tracker",
			PublicURL:      "http://localhost:5173",
			ActivationPath: "/activate",
			ResetPath:      "/reset-password",
			SendTimeout:    10 * time.Second,
		},
		Account: AccountConfig{
			DefaultRole:       "member",
			ActivationTTL:     48 * time.Hour,
			ResetTTL:          time.Hour,
			MinPasswordLength: 8,
			LinkRedisPrefix:   "sal",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			ProductionMode:      true,
			LineageRedisPrefix:  "srl",
			LoginThrottleWindow: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:       true,
			BufferSize:    256,
			DropIfFull:    true,
			RecordTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTLLong <= 0 || c.JWT.RefreshTTLShort <= 0 {
		return errors.New("JWT refresh TTLs must be > 0")
	}
	if c.JWT.RefreshTTLShort > c.JWT.RefreshTTLLong {
		return errors.New("JWT RefreshTTLShort must be <= RefreshTTLLong")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Challenge
	if c.Challenge.CodeDigits < 4 || c.Challenge.CodeDigits > 10 {
		return errors.New("Challenge CodeDigits must be between 4 and 10")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.MaxAttempts < 0 || c.Challenge.MaxAttempts > 65535 {
		return errors.New("Challenge MaxAttempts must be between 0 and 65535")
	}
	if c.Challenge.MaxSends < 0 || (c.Challenge.MaxSends > 0 && c.Challenge.SendWindow <= 0) {
		return errors.New("Challenge SendWindow must be > 0 when MaxSends is set")
	}

	// Device trust
	if c.DeviceTrust.TTL <= 0 {
		return errors.New("DeviceTrust TTL must be > 0")
	}
	if _, err := devicetrust.ParseIPPolicy(c.DeviceTrust.IPPolicy); err != nil {
		return fmt.Errorf("DeviceTrust IPPolicy: %w", err)
	}

	// Cookie
	if !strings.HasPrefix(c.Cookie.RefreshPath, "/") {
		return errors.New("Cookie RefreshPath must start with /")
	}

	// Email
	if c.Email.PublicURL != "" {
		if err := validateBaseURL(c.Email.PublicURL); err != nil {
			return fmt.Errorf("Email PublicURL: %w", err)
		}
	}
	if c.Email.ProductionURL != "" {
		if err := validateBaseURL(c.Email.ProductionURL); err != nil {
			return fmt.Errorf("Email ProductionURL: %w", err)
		}
	}
	if c.Email.ForceProductionLinks && c.Email.ProductionURL == "" {
		return errors.New("Email ForceProductionLinks requires ProductionURL")
	}
	if c.Email.SendTimeout <= 0 {
		return errors.New("Email SendTimeout must be > 0")
	}

	// Account
	if strings.TrimSpace(c.Account.DefaultRole) == "" {
		return errors.New("Account DefaultRole is required")
	}
	if c.Account.ActivationTTL <= 0 || c.Account.ResetTTL <= 0 {
		return errors.New("Account link TTLs must be > 0")
	}
	if c.Account.MinPasswordLength < 1 {
		return errors.New("Account MinPasswordLength must be >= 1")
	}

	// Password
	if err := c.Password.params().Validate(); err != nil {
		return err
	}

	// Security
	if c.Security.LoginThrottleMax < 0 || (c.Security.LoginThrottleMax > 0 && c.Security.LoginThrottleWindow <= 0) {
		return errors.New("Security LoginThrottleWindow must be > 0 when LoginThrottleMax is set")
	}
	if c.Security.ProductionMode {
		if len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32 {
			return errors.New("ProductionMode requires JWT secrets of at least 32 bytes")
		}
		if c.Account.MinPasswordLength < 8 {
			return errors.New("ProductionMode requires MinPasswordLength >= 8")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
