package otel

import (
	"context"
	"errors"
	"fmt"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goAccount.MetricsSnapshot
	AuditStats() goAccount.AuditStats
	StoreStats(ctx context.Context) (goAccount.StoreStats, error)
}

type observedCounter struct {
	id         goAccount.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      goAccount.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type observedGauge struct {
	def        internaldefs.GaugeDef
	instrument metric.Int64ObservableGauge
}

// OTelExporter publishes engine counters, latency buckets and the live
// session, reset-code and audit-queue gauges as observable instruments.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	gauges       []observedGauge
	storeUp      metric.Int64ObservableGauge
	truncated    metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
	auditPanics  metric.Int64ObservableCounter
}

// NewOTelExporter registers every instrument on meter and reads engine on
// each collection.
func NewOTelExporter(meter metric.Meter, engine *goAccount.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
		gauges:     make([]observedGauge, 0, len(internaldefs.GaugeDefs)),
	}

	observables := make([]metric.Observable, 0,
		len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+len(internaldefs.GaugeDefs)+4)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i := 0; i < len(internaldefs.HistogramBoundSuffix); i++ {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	for _, def := range internaldefs.GaugeDefs {
		ins, err := meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", def.Name, err)
		}
		exporter.gauges = append(exporter.gauges, observedGauge{def: def, instrument: ins})
		observables = append(observables, ins)
	}

	var err error
	if exporter.storeUp, err = meter.Int64ObservableGauge(internaldefs.StoreUpName, metric.WithDescription(internaldefs.StoreUpHelp)); err != nil {
		return nil, fmt.Errorf("create store up gauge: %w", err)
	}
	if exporter.truncated, err = meter.Int64ObservableGauge(internaldefs.StoreTruncatedName, metric.WithDescription(internaldefs.StoreTruncatedHelp)); err != nil {
		return nil, fmt.Errorf("create store truncated gauge: %w", err)
	}
	if exporter.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp)); err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	if exporter.auditPanics, err = meter.Int64ObservableCounter(internaldefs.AuditPanicsName, metric.WithDescription(internaldefs.AuditPanicsHelp)); err != nil {
		return nil, fmt.Errorf("create audit panics counter: %w", err)
	}
	observables = append(observables, exporter.storeUp, exporter.truncated, exporter.auditDropped, exporter.auditPanics)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(ctx context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[h.id])
		cumulative := internaldefs.CumulativeBuckets(nonCumulative)
		for i := 0; i < len(cumulative); i++ {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	auditStats := e.source.AuditStats()
	storeStats, storeErr := e.source.StoreStats(ctx)
	for _, g := range e.gauges {
		if g.def.Store && storeErr != nil {
			continue
		}
		observer.ObserveInt64(g.instrument, internaldefs.GaugeValue(g.def.Gauge, storeStats, auditStats))
	}
	if storeErr != nil {
		observer.ObserveInt64(e.storeUp, 0)
	} else {
		observer.ObserveInt64(e.storeUp, 1)
		observer.ObserveInt64(e.truncated, boolValue(storeStats.Truncated))
	}

	for _, event := range internaldefs.SortedEventTypes(auditStats.DroppedByType) {
		observer.ObserveInt64(e.auditDropped, int64(auditStats.DroppedByType[event]),
			metric.WithAttributes(attribute.String("event", event)))
	}
	observer.ObserveInt64(e.auditPanics, int64(auditStats.SinkPanics))

	return nil
}

func boolValue(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
