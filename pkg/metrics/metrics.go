// Package metrics defines the Prometheus metric collectors used across the
// extraction, usage, matching and ontology-loading pipelines and exposes an
// HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipelines. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	RecordsExtractedTotal *prometheus.CounterVec
	RecordsSkippedTotal   *prometheus.CounterVec
	UsageRecordsTotal     *prometheus.CounterVec
	MatchQueriesTotal     *prometheus.CounterVec
	MatchLatency          *prometheus.HistogramVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	FieldsProcessedTotal  *prometheus.CounterVec
	OntologyFilesTotal    *prometheus.CounterVec
	TermsIndexedTotal     prometheus.Counter
	StageDuration         *prometheus.HistogramVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_extracted_total",
				Help: "Attribute records extracted and persisted, by schema.",
			},
			[]string{"schema"},
		),
		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_skipped_total",
				Help: "Source elements skipped during extraction, by schema and reason.",
			},
			[]string{"schema", "reason"},
		),
		UsageRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usage_records_processed_total",
				Help: "(key, sample) pairs consumed by the usage statistics pass.",
			},
			[]string{"schema"},
		),
		MatchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "match_queries_total",
				Help: "Ontology match queries by mode (exact, fuzzy) and result (hit, miss, error).",
			},
			[]string{"mode", "result"},
		),
		MatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "match_query_latency_seconds",
				Help:    "Ontology match query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"mode"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "match_cache_hits_total",
				Help: "Total number of match cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "match_cache_misses_total",
				Help: "Total number of match cache misses.",
			},
		),
		FieldsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fields_processed_total",
				Help: "Metadata fields processed by the feature pipeline, by status.",
			},
			[]string{"status"},
		),
		OntologyFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ontology_files_total",
				Help: "Ontology files processed by the loader, by status (loaded, failed).",
			},
			[]string{"status"},
		),
		TermsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ontology_terms_indexed_total",
				Help: "Ontology term documents written to the search index or term topic.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Wall time of one pipeline stage.",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
			},
			[]string{"stage"},
		),
	}

	reg.MustRegister(
		m.RecordsExtractedTotal,
		m.RecordsSkippedTotal,
		m.UsageRecordsTotal,
		m.MatchQueriesTotal,
		m.MatchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.FieldsProcessedTotal,
		m.OntologyFilesTotal,
		m.TermsIndexedTotal,
		m.StageDuration,
	)

	return m
}

func (m *Metrics) RecordExtracted(schema string) {
	if m == nil {
		return
	}
	m.RecordsExtractedTotal.WithLabelValues(schema).Inc()
}

func (m *Metrics) RecordsSkipped(schema, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsSkippedTotal.WithLabelValues(schema, reason).Add(float64(n))
}

func (m *Metrics) UsageRecord(schema string) {
	if m == nil {
		return
	}
	m.UsageRecordsTotal.WithLabelValues(schema).Inc()
}

// ObserveMatch records one match query; result is "hit", "miss" or "error".
func (m *Metrics) ObserveMatch(mode, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MatchQueriesTotal.WithLabelValues(mode, result).Inc()
	m.MatchLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) FieldProcessed(status string) {
	if m == nil {
		return
	}
	m.FieldsProcessedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) OntologyFile(status string) {
	if m == nil {
		return
	}
	m.OntologyFilesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) TermIndexed() {
	if m == nil {
		return
	}
	m.TermsIndexedTotal.Inc()
}

// ObserveStage records the duration of a finished stage started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
