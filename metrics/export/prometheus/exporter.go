package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/metrics/export/internaldefs"
)

// storeStatsTimeout bounds the Redis keyspace walk of one scrape.
const storeStatsTimeout = 2 * time.Second

type metricsSource interface {
	MetricsSnapshot() goAccount.MetricsSnapshot
	AuditStats() goAccount.AuditStats
	StoreStats(ctx context.Context) (goAccount.StoreStats, error)
}

// PrometheusExporter renders engine counters plus live session, reset-code
// and audit-queue gauges in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every render.
func NewPrometheusExporter(engine *goAccount.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource renders any snapshot source; tests pass fakes.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render with the Prometheus text content type. The store
// walk is bound to the scrape request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render(r.Context())))
	})
}

// Render returns the current metrics, or "" when engine metrics are
// disabled. A failed store walk drops the store gauges and reports
// goaccount_store_stats_up 0.
func (p *PrometheusExporter) Render(ctx context.Context) string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return ""
	}
	auditStats := p.source.AuditStats()

	ctx, cancel := context.WithTimeout(ctx, storeStatsTimeout)
	defer cancel()
	storeStats, storeErr := p.source.StoreStats(ctx)

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		writeHeader(&b, def.Name, def.Help, "counter")
		writeSample(&b, def.Name, "", snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(nonCumulative)
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	for _, def := range internaldefs.GaugeDefs {
		if def.Store && storeErr != nil {
			continue
		}
		writeHeader(&b, def.Name, def.Help, "gauge")
		writeSample(&b, def.Name, "", uint64(internaldefs.GaugeValue(def.Gauge, storeStats, auditStats)))
	}

	writeHeader(&b, internaldefs.StoreUpName, internaldefs.StoreUpHelp, "gauge")
	writeSample(&b, internaldefs.StoreUpName, "", boolValue(storeErr == nil))
	if storeErr == nil {
		writeHeader(&b, internaldefs.StoreTruncatedName, internaldefs.StoreTruncatedHelp, "gauge")
		writeSample(&b, internaldefs.StoreTruncatedName, "", boolValue(storeStats.Truncated))
	}

	writeHeader(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	for _, event := range internaldefs.SortedEventTypes(auditStats.DroppedByType) {
		writeSample(&b, internaldefs.AuditDroppedName, `event="`+escapeLabel(event)+`"`, auditStats.DroppedByType[event])
	}

	writeHeader(&b, internaldefs.AuditPanicsName, internaldefs.AuditPanicsHelp, "counter")
	writeSample(&b, internaldefs.AuditPanicsName, "", auditStats.SinkPanics)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, labels string, value uint64) {
	b.WriteString(name)
	if labels != "" {
		b.WriteByte('{')
		b.WriteString(labels)
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		writeSample(b, name+"_bucket", `le="`+le+`"`, cumulative[i])
	}
	writeSample(b, name+"_count", "", cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	writeSample(b, name+"_sum", "", 0)
}

func boolValue(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}
