// Command siteauth-server serves the sign-in API over HTTP.
//
// Production mode is on unless APP_ENV is development, dev, local or test.
// Outside production REDIS_ADDR may be omitted and an in-process miniredis is used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	siteAuth "github.com/MrEthical07/siteAuth"
	"github.com/MrEthical07/siteAuth/credential"
	"github.com/MrEthical07/siteAuth/credential/mysql"
	"github.com/MrEthical07/siteAuth/credential/postgres"
	"github.com/MrEthical07/siteAuth/httpapi"
	"github.com/MrEthical07/siteAuth/mail"
	siteotel "github.com/MrEthical07/siteAuth/metrics/export/otel"
	"github.com/MrEthical07/siteAuth/metrics/export/prometheus"
	"github.com/MrEthical07/siteAuth/queue"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "listen address")
		configPath   = flag.String("config", "", "optional YAML config file")
		envFile      = flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
		store        = flag.String("store", "memory", "credential store: memory, postgres or mysql")
		seedEmail    = flag.String("seed-email", "", "create this active account at startup if missing")
		seedPassword = flag.String("seed-password", "", "password for -seed-email")
		seedRole     = flag.String("seed-role", "admin", "role for -seed-email")
		otelInterval = flag.Duration("otel-log-interval", 0, "log OpenTelemetry metric collections at this interval; 0 disables")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger, options{
		addr:         *addr,
		configPath:   *configPath,
		envFile:      *envFile,
		store:        *store,
		seedEmail:    *seedEmail,
		seedPassword: *seedPassword,
		seedRole:     *seedRole,
		otelInterval: *otelInterval,
	}); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

type options struct {
	addr         string
	configPath   string
	envFile      string
	store        string
	seedEmail    string
	seedPassword string
	seedRole     string
	otelInterval time.Duration
}

func run(logger *slog.Logger, opts options) error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	cfg := siteAuth.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := siteAuth.LoadConfigFile(opts.configPath, cfg)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := siteAuth.ApplyEnv(&cfg, os.Getenv); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(logger, cfg.Security.ProductionMode)
	if err != nil {
		return err
	}
	defer closeRedis()

	accounts, closeStore, err := openCredentialStore(ctx, opts.store)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := siteAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(accounts).
		WithLogger(logger)

	if url := amqpURL(); url != "" {
		pub, err := queue.Dial(url)
		if err != nil {
			return err
		}
		defer pub.Close()
		builder = builder.WithEmailTransport(queue.NewMailer(pub)).WithAuditSink(queue.NewAuditSink(pub))
		logger.Info("email and audit publishing to broker", slog.String("email_queue", queue.EmailQueue))
	} else {
		builder = builder.WithEmailTransport(mail.NewLogTransport(logger))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if opts.seedEmail != "" {
		if err := seedAccount(ctx, engine, opts.seedEmail, opts.seedPassword, opts.seedRole); err != nil {
			return err
		}
		logger.Info("seed account ready", slog.String("email", opts.seedEmail))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	httpapi.Register(e, "/api/auth", httpapi.NewHandler(engine, logger))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Metrics.Enabled {
		e.GET("/metrics", echo.WrapHandler(prometheus.NewCollector(engine).Handler()))
		if opts.otelInterval > 0 {
			stopOTel, err := startOTel(logger, engine, opts.otelInterval)
			if err != nil {
				return err
			}
			defer stopOTel()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", opts.addr), slog.Bool("production", cfg.Security.ProductionMode))
		if err := e.Start(opts.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// startOTel mirrors engine metrics into an OpenTelemetry MeterProvider that
// writes each collection to the log.
func startOTel(logger *slog.Logger, engine *siteAuth.Engine, interval time.Duration) (func(), error) {
	provider := siteotel.NewLogMeterProvider(logger, interval)
	exporter, err := siteotel.NewExporter(provider.Meter("github.com/MrEthical07/siteAuth"), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("otel shutdown", slog.Any("error", err))
		}
		_ = exporter.Close()
	}, nil
}

// openRedis uses REDIS_ADDR when set. Outside production an in-process
// miniredis stands in so the server runs with no dependencies.
func openRedis(logger *slog.Logger, production bool) (redis.UniversalClient, func(), error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		if production {
			return nil, nil, errors.New("REDIS_ADDR is required in production mode")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("using in-process miniredis", slog.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    strings.Split(addr, ","),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return client, func() { _ = client.Close() }, nil
}

func openCredentialStore(ctx context.Context, kind string) (credential.Store, func(), error) {
	switch kind {
	case "memory", "":
		return credential.NewMemoryStore(), func() {}, nil

	case "postgres":
		pool, err := postgres.Open(ctx, os.Getenv("DATABASE_URL"), 10)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.New(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case "mysql":
		db, err := mysql.Open(ctx, os.Getenv("MYSQL_DSN"))
		if err != nil {
			return nil, nil, err
		}
		store, err := mysql.New(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown credential store %q", kind)
}

func amqpURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url
	}
	return os.Getenv("AMQP_URL")
}

// seedAccount creates an active account, leaving an existing one untouched.
func seedAccount(ctx context.Context, engine *siteAuth.Engine, email, password, role string) error {
	res, err := engine.CreateAccount(ctx, siteAuth.CreateAccountRequest{Email: email, Password: password, Role: role})
	if errors.Is(err, siteAuth.ErrAccountExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed account: %w", err)
	}
	if res.User.Status != siteAuth.AccountActive.String() {
		return engine.SetAccountStatus(ctx, res.User.ID, siteAuth.AccountActive)
	}
	return nil
}
