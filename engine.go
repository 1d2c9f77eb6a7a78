package siteAuth

import (
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
)

// Engine runs the login, second-factor, refresh, logout and account flows.
//
// An Engine is built once by [Builder.Build] and is safe for concurrent use.
type Engine struct {
	config     Config
	accounts   credential.Store
	challenges challenge.Store
	devices    *devicetrust.Registry
	jwt        *jwt.Manager
	hasher     *password.Hasher
	// dummyHash is verified against when the email is unknown so both paths cost the same.
	dummyHash  string
	links      stores.LinkStore
	lineages   stores.LineageStore
	limiter    *rate.Limiter
	audit      *audit.Dispatcher
	metrics    *Metrics
	mailer     EmailTransport
	logger     *slog.Logger
	now        func() time.Time
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics != nil {
		e.metrics.Inc(id)
	}
}

// production reports whether dev secrets must be withheld from responses.
func (e *Engine) production() bool {
	return e.config.Security.ProductionMode
}
