package otel

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// LogExporter is an sdkmetric.Exporter that writes each collection as one
// structured log record. It serves deployments without an OTLP collector.
type LogExporter struct {
	logger *slog.Logger
	// SkipZero leaves out points whose value is 0.
	SkipZero bool
}

var _ sdkmetric.Exporter = (*LogExporter)(nil)

func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger, SkipZero: true}
}

// NewLogMeterProvider returns a MeterProvider that logs every interval
// through a [LogExporter]. Shut it down to flush the last collection.
func NewLogMeterProvider(logger *slog.Logger, interval time.Duration) *sdkmetric.MeterProvider {
	reader := sdkmetric.NewPeriodicReader(NewLogExporter(logger), sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func (l *LogExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (l *LogExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (l *LogExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	var attrs []slog.Attr
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				attrs = l.appendPoints(attrs, m.Name, data.DataPoints)
			case metricdata.Gauge[int64]:
				attrs = l.appendPoints(attrs, m.Name, data.DataPoints)
			}
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "metrics", attrs...)
	return nil
}

func (l *LogExporter) appendPoints(attrs []slog.Attr, name string, points []metricdata.DataPoint[int64]) []slog.Attr {
	for _, p := range points {
		if l.SkipZero && p.Value == 0 {
			continue
		}
		key := name
		if le, ok := p.Attributes.Value(attribute.Key("le")); ok {
			key += "{le:" + le.Emit() + "}"
		}
		attrs = append(attrs, slog.Int64(key, p.Value))
	}
	return attrs
}

func (l *LogExporter) ForceFlush(context.Context) error { return nil }

func (l *LogExporter) Shutdown(context.Context) error { return nil }
