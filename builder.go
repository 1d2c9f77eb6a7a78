package siteAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/siteAuth/challenge"
	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/devicetrust"
	"github.com/MrEthical07/siteAuth/internal/audit"
	"github.com/MrEthical07/siteAuth/internal/rate"
	"github.com/MrEthical07/siteAuth/internal/stores"
	"github.com/MrEthical07/siteAuth/jwt"
	"github.com/MrEthical07/siteAuth/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts   credential.Store
	challenges challenge.Store
	devices    devicetrust.Store
	links      stores.LinkStore
	auditSink  AuditSink
	mailer     EmailTransport
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis makes Build back challenges, devices, links, lineages and
// throttling with Redis instead of process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the account backend. It is required.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.accounts = store
	return b
}

// WithChallengeStore overrides the one-time code store chosen by Build.
func (b *Builder) WithChallengeStore(store challenge.Store) *Builder {
	b.challenges = store
	return b
}

// WithDeviceStore overrides the trusted device store chosen by Build.
func (b *Builder) WithDeviceStore(store devicetrust.Store) *Builder {
	b.devices = store
	return b
}

// WithLinkStore overrides the activation and reset link store chosen by Build.
func (b *Builder) WithLinkStore(store stores.LinkStore) *Builder {
	b.links = store
	return b
}

// WithAuditSink enables asynchronous delivery of security events to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithEmailTransport(t EmailTransport) *Builder {
	b.mailer = t
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every expiry decision the engine makes.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// used only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("credential store required")
	}
	if b.redis == nil {
		if cfg.Security.LoginThrottleMax > 0 {
			return nil, errors.New("login throttling requires redis client")
		}
		if cfg.Challenge.MaxSends > 0 {
			return nil, errors.New("Challenge MaxSends requires redis client")
		}
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:    []byte(cfg.JWT.AccessSecret),
		RefreshSecret:   []byte(cfg.JWT.RefreshSecret),
		AccessTTL:       cfg.JWT.AccessTTL,
		RefreshTTLLong:  cfg.JWT.RefreshTTLLong,
		RefreshTTLShort: cfg.JWT.RefreshTTLShort,
		Issuer:          cfg.JWT.Issuer,
		Audience:        cfg.JWT.Audience,
		Leeway:          cfg.JWT.Leeway,
		KeyID:           cfg.JWT.KeyID,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.params())
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("siteauth-timing-equalizer")
	if err != nil {
		return nil, err
	}

	// -------- CHALLENGES --------
	challenges := b.challenges
	if challenges == nil {
		if b.redis != nil {
			challenges = challenge.NewRedisStore(b.redis, cfg.Challenge.RedisPrefix, cfg.Challenge.MaxAttempts)
		} else {
			challenges = challenge.NewMemoryStore(cfg.Challenge.MaxAttempts).WithClock(now)
		}
	}

	// -------- DEVICES --------
	deviceStore := b.devices
	if deviceStore == nil {
		if b.redis != nil {
			deviceStore = devicetrust.NewRedisStore(b.redis, cfg.DeviceTrust.RedisPrefix)
		} else {
			deviceStore = devicetrust.NewMemoryStore().WithClock(now)
		}
	}
	policy, err := devicetrust.ParseIPPolicy(cfg.DeviceTrust.IPPolicy)
	if err != nil {
		return nil, err
	}
	devices, err := devicetrust.NewRegistry(deviceStore, cfg.DeviceTrust.TTL, policy, now)
	if err != nil {
		return nil, err
	}

	// -------- LINKS & LINEAGES --------
	links := b.links
	if links == nil {
		if b.redis != nil {
			links = stores.NewRedisLinkStore(b.redis, cfg.Account.LinkRedisPrefix)
		} else {
			links = stores.NewMemoryLinkStore().WithClock(now)
		}
	}

	var lineages stores.LineageStore
	if cfg.Security.RefreshReuseDetection {
		if b.redis != nil {
			lineages = stores.NewRedisLineageStore(b.redis, cfg.Security.LineageRedisPrefix)
		} else {
			lineages = stores.NewMemoryLineageStore().WithClock(now)
		}
	}

	// -------- THROTTLING --------
	var limiter *rate.Limiter
	if b.redis != nil && (cfg.Security.LoginThrottleMax > 0 || cfg.Challenge.MaxSends > 0) {
		limiter = rate.New(b.redis, rate.Config{
			MaxLoginFailures: cfg.Security.LoginThrottleMax,
			LoginWindow:      cfg.Security.LoginThrottleWindow,
			EnableIPThrottle: cfg.Security.ThrottleByIP,
			MaxCodeSends:     cfg.Challenge.MaxSends,
			CodeSendWindow:   cfg.Challenge.SendWindow,
		})
	}

	// -------- AUDIT --------
	var dispatcher *audit.Dispatcher
	if cfg.Audit.Enabled && b.auditSink != nil {
		dispatcher = audit.NewDispatcher(audit.Config{
			BufferSize:    cfg.Audit.BufferSize,
			DropIfFull:    cfg.Audit.DropIfFull,
			RecordTimeout: cfg.Audit.RecordTimeout,
		}, b.auditSink, logger)
	}

	b.built = true

	return &Engine{
		config:     cfg,
		accounts:   b.accounts,
		challenges: challenges,
		devices:    devices,
		jwt:        tokens,
		hasher:     hasher,
		dummyHash:  dummyHash,
		links:      links,
		lineages:   lineages,
		limiter:    limiter,
		audit:      dispatcher,
		metrics:    NewMetrics(cfg.Metrics),
		mailer:     b.mailer,
		logger:     logger,
		now:        now,
	}, nil
}
