package prometheus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goAccount "github.com/MrEthical07/goAccount"
)

type fakeSource struct {
	snapshot goAccount.MetricsSnapshot
	audit    goAccount.AuditStats
	store    goAccount.StoreStats
	storeErr error
	storeCtx context.Context
}

func (f *fakeSource) MetricsSnapshot() goAccount.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditStats() goAccount.AuditStats           { return f.audit }

func (f *fakeSource) StoreStats(ctx context.Context) (goAccount.StoreStats, error) {
	f.storeCtx = ctx
	return f.store, f.storeErr
}

func loginSnapshot() goAccount.MetricsSnapshot {
	return goAccount.MetricsSnapshot{
		Counters: map[goAccount.MetricID]uint64{
			goAccount.MetricLoginSuccess: 7,
		},
		Histograms: map[goAccount.MetricID][]uint64{
			goAccount.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
		},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters:   map[goAccount.MetricID]uint64{},
			Histograms: map[goAccount.MetricID][]uint64{},
		},
		audit: goAccount.AuditStats{Dropped: 3},
	})

	if got := exp.Render(context.Background()); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderCountersAndHistograms(t *testing.T) {
	exp := NewPrometheusExporterFromSource(&fakeSource{snapshot: loginSnapshot()})

	out := exp.Render(context.Background())
	for _, want := range []string{
		"goaccount_login_success_total 7",
		"goaccount_refresh_reuse_detected_total 0",
		`goaccount_login_latency_seconds_bucket{le="0.005"} 1`,
		`goaccount_login_latency_seconds_bucket{le="+Inf"} 36`,
		"goaccount_refresh_latency_seconds_count 0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSessionAndResetGauges(t *testing.T) {
	src := &fakeSource{
		snapshot: loginSnapshot(),
		store:    goAccount.StoreStats{UsersWithSessions: 42, OutstandingResetCodes: 5},
		audit: goAccount.AuditStats{
			Queued:     3,
			Dropped:    4,
			SinkPanics: 1,
			DroppedByType: map[string]uint64{
				"refresh_success": 3,
				"login_failure":   1,
			},
		},
	}
	out := NewPrometheusExporterFromSource(src).Render(context.Background())

	for _, want := range []string{
		"# TYPE goaccount_users_with_sessions gauge\ngoaccount_users_with_sessions 42\n",
		"# TYPE goaccount_reset_codes_outstanding gauge\ngoaccount_reset_codes_outstanding 5\n",
		"goaccount_audit_queue_depth 3\n",
		"goaccount_store_stats_up 1\n",
		"goaccount_store_stats_truncated 0\n",
		"goaccount_audit_sink_panics_total 1\n",
		"goaccount_audit_dropped_total{event=\"login_failure\"} 1\ngoaccount_audit_dropped_total{event=\"refresh_success\"} 3\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if src.storeCtx == nil {
		t.Fatal("expected StoreStats to receive a context")
	}
	if _, ok := src.storeCtx.Deadline(); !ok {
		t.Fatal("expected the store walk to be bounded by a deadline")
	}
}

func TestRenderStoreDown(t *testing.T) {
	exp := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: loginSnapshot(),
		storeErr: errors.New("redis unavailable"),
		audit:    goAccount.AuditStats{Queued: 2},
	})

	out := exp.Render(context.Background())
	if !strings.Contains(out, "goaccount_store_stats_up 0\n") {
		t.Fatalf("expected store down marker, got:\n%s", out)
	}
	for _, absent := range []string{"goaccount_users_with_sessions", "goaccount_reset_codes_outstanding", "goaccount_store_stats_truncated"} {
		if strings.Contains(out, absent) {
			t.Fatalf("store gauge %s must be skipped when the walk fails:\n%s", absent, out)
		}
	}
	if !strings.Contains(out, "goaccount_audit_queue_depth 2\n") {
		t.Fatalf("audit gauge must survive a store failure, got:\n%s", out)
	}
	if !strings.Contains(out, "goaccount_login_success_total 7") {
		t.Fatalf("counters must survive a store failure, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters:   map[goAccount.MetricID]uint64{goAccount.MetricLoginSuccess: 1},
			Histograms: map[goAccount.MetricID][]uint64{},
		},
		store: goAccount.StoreStats{UsersWithSessions: 1},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "goaccount_users_with_sessions 1") {
		t.Fatalf("expected session gauge in body, got:\n%s", rec.Body.String())
	}
}

func TestEscapeLabel(t *testing.T) {
	if got := escapeLabel("a\"b\\c\nd"); got != `a\"b\\c\nd` {
		t.Fatalf("unexpected escape %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: goAccount.MetricsSnapshot{
			Counters: map[goAccount.MetricID]uint64{
				goAccount.MetricLoginSuccess:                1000,
				goAccount.MetricLoginFailure:                40,
				goAccount.MetricRefreshSuccess:              800,
				goAccount.MetricRefreshReuseDetected:        2,
				goAccount.MetricSessionCreated:              800,
				goAccount.MetricSessionInvalidated:          20,
				goAccount.MetricPasswordResetRequest:        12,
				goAccount.MetricPasswordResetConfirmFailure: 3,
			},
			Histograms: map[goAccount.MetricID][]uint64{
				goAccount.MetricLoginLatency:   {10, 20, 30, 40, 50, 60, 70, 80},
				goAccount.MetricRefreshLatency: {80, 10, 5, 1, 0, 0, 0, 0},
			},
		},
		store: goAccount.StoreStats{UsersWithSessions: 900, OutstandingResetCodes: 4},
		audit: goAccount.AuditStats{DroppedByType: map[string]uint64{"refresh_success": 9}},
	})

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render(ctx)
	}
}
