package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordExtracted("ncbi")
		m.ObserveMatch("exact", "hit", time.Millisecond)
		m.CacheHit()
		m.ObserveStage("usage", time.Now())
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordExtracted("ncbi")
	m.RecordExtracted("ncbi")
	m.RecordsSkipped("ebi", "missing_key", 1)
	m.ObserveMatch("fuzzy", "miss", 2*time.Millisecond)
	m.OntologyFile("failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsExtractedTotal.WithLabelValues("ncbi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsSkippedTotal.WithLabelValues("ebi", "missing_key")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchQueriesTotal.WithLabelValues("fuzzy", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OntologyFilesTotal.WithLabelValues("failed")))
}
