package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	siteAuth "github.com/MrEthical07/siteAuth"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot siteAuth.MetricsSnapshot
	dropped  uint64
	failed   uint64
}

func (f fakeSource) MetricsSnapshot() siteAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }
func (f fakeSource) AuditFailed() uint64                       { return f.failed }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: siteAuth.MetricsSnapshot{
			Counters: map[siteAuth.MetricID]uint64{
				siteAuth.MetricLoginSuccess:         7,
				siteAuth.MetricRefreshReuseDetected: 1,
			},
			Histograms: map[siteAuth.MetricID][]uint64{
				siteAuth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(sampleSource())

	registry := prom.NewRegistry()
	if err := registry.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expected := `
# HELP siteauth_login_success_total Logins that issued tokens.
# TYPE siteauth_login_success_total counter
siteauth_login_success_total 7
# HELP siteauth_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE siteauth_audit_dropped_total counter
siteauth_audit_dropped_total 2
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "siteauth_login_success_total", "siteauth_audit_dropped_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "siteauth_validate_latency_seconds" {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 36 {
			t.Fatalf("sample count = %d, want 36", h.GetSampleCount())
		}
		if first := h.GetBucket()[0]; first.GetUpperBound() != 0.005 || first.GetCumulativeCount() != 1 {
			t.Fatalf("first bucket = %v", first)
		}
		return
	}
	t.Fatal("latency histogram missing")
}

func TestCollectorDescribesEverySeries(t *testing.T) {
	c := NewCollectorFromSource(sampleSource())
	if got := testutil.CollectAndCount(c); got != 30 {
		t.Fatalf("collected %d series, want 30", got)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	c := NewCollectorFromSource(sampleSource())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "siteauth_refresh_reuse_detected_total 1") {
		t.Fatalf("missing reuse counter:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `siteauth_validate_latency_seconds_bucket{le="+Inf"} 36`) {
		t.Fatalf("missing +Inf bucket:\n%s", rec.Body.String())
	}
}
