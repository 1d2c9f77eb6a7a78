package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	siteAuth "github.com/MrEthical07/siteAuth"
	"github.com/MrEthical07/siteAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is read once per collection cycle. *siteAuth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() siteAuth.MetricsSnapshot
	AuditDropped() uint64
	AuditFailed() uint64
}

// observeFunc reports one instrument's value from a snapshot.
type observeFunc func(o metric.Observer, snap siteAuth.MetricsSnapshot)

// Exporter mirrors the engine's in-process metrics into an OTel meter.
// Counters become observable counters. Each latency histogram becomes a
// "_bucket" gauge with one cumulative point per "le" bound plus a "_count" gauge.
type Exporter struct {
	source       Source
	registration metric.Registration
	observers    []observeFunc
}

// NewExporter registers instruments on meter and a single callback that reads
// source. The caller owns the MeterProvider.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if engine, ok := source.(*siteAuth.Engine); ok && engine == nil {
		return nil, ErrNilSource
	}

	x := &Exporter{source: source}
	var instruments []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		instruments = append(instruments, c)
		x.observers = append(x.observers, func(o metric.Observer, snap siteAuth.MetricsSnapshot) {
			o.ObserveInt64(c, int64(snap.Counters[id]))
		})
	}

	les := bucketAttributes()
	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per bound."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		instruments = append(instruments, buckets, count)
		x.observers = append(x.observers, func(o metric.Observer, snap siteAuth.MetricsSnapshot) {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[id]))
			for i, n := range cumulative {
				o.ObserveInt64(buckets, int64(n), les[i])
			}
			o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
		})
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	failed, err := meter.Int64ObservableCounter(internaldefs.AuditFailedName, metric.WithDescription(internaldefs.AuditFailedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditFailedName, err)
	}
	instruments = append(instruments, dropped, failed)
	x.observers = append(x.observers, func(o metric.Observer, _ siteAuth.MetricsSnapshot) {
		o.ObserveInt64(dropped, int64(x.source.AuditDropped()))
		o.ObserveInt64(failed, int64(x.source.AuditFailed()))
	})

	reg, err := meter.RegisterCallback(x.collect, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	x.registration = reg
	return x, nil
}

func (x *Exporter) collect(_ context.Context, o metric.Observer) error {
	snap := x.source.MetricsSnapshot()
	for _, observe := range x.observers {
		observe(o, snap)
	}
	return nil
}

// Close unregisters the collection callback. It is safe to call more than once.
func (x *Exporter) Close() error {
	if x == nil || x.registration == nil {
		return nil
	}
	reg := x.registration
	x.registration = nil
	return reg.Unregister()
}

// bucketAttributes returns one "le" attribute option per histogram bucket, +Inf last.
func bucketAttributes() []metric.ObserveOption {
	out := make([]metric.ObserveOption, 0, len(internaldefs.HistogramBounds)+1)
	for _, bound := range internaldefs.HistogramBounds {
		le := strconv.FormatFloat(bound, 'g', -1, 64)
		out = append(out, metric.WithAttributes(attribute.String("le", le)))
	}
	return append(out, metric.WithAttributes(attribute.String("le", "+Inf")))
}
