package features

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/store"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

// MappingHeader lists the exact-mapping report columns.
var MappingHeader = []string{"field", "total_values", "ontology", "ontology_count"}

// MappingRow is the dominant exact-match ontology of one field.
type MappingRow struct {
	Field       string
	TotalValues int
	Ontology    string
	Count       int
}

// CSVRecord leaves ontology and count blank when nothing matched.
func (r MappingRow) CSVRecord() []string {
	if r.Ontology == "" {
		return []string{r.Field, strconv.Itoa(r.TotalValues), "", ""}
	}
	return []string{r.Field, strconv.Itoa(r.TotalValues), r.Ontology, strconv.Itoa(r.Count)}
}

// DistinctHeader lists the distinct-values report columns.
var DistinctHeader = []string{"field", "total_values", "distinct_values"}

// DistinctRow counts the values of one field.
type DistinctRow struct {
	Field          string
	TotalValues    int
	DistinctValues int
}

func (r DistinctRow) CSVRecord() []string {
	return []string{r.Field, strconv.Itoa(r.TotalValues), strconv.Itoa(r.DistinctValues)}
}

// Summary counts the fields a run looked at.
type Summary struct {
	Processed int
	Skipped   int
}

// Runner drives the per-field reports over one collection.
type Runner struct {
	source  store.FieldValues
	matcher Matcher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRunner(source store.FieldValues, m Matcher, mtr *metrics.Metrics) *Runner {
	return &Runner{
		source:  source,
		matcher: m,
		metrics: mtr,
		logger:  slog.Default().With("component", "features"),
	}
}

// Features scores every allow-listed field, scoped to its ontologies. Fields
// without stored values are skipped with a warning.
func (r *Runner) Features(ctx context.Context, al *AllowList, emit func(Row) error) (Summary, error) {
	start := time.Now()
	var sum Summary
	for _, entry := range al.Entries {
		values, err := r.source.ValuesFor(ctx, entry.Field)
		if err != nil {
			return sum, fmt.Errorf("loading values for %q: %w", entry.Field, err)
		}
		if len(values) == 0 {
			r.logger.Warn("field has no values, skipping", "field", entry.Field)
			r.metrics.FieldProcessed("skipped")
			sum.Skipped++
			continue
		}
		r.logger.Info("processing attribute",
			"field", entry.Field,
			"ontologies", strings.Join(entry.Ontologies, "|"),
			"values", len(values),
		)
		row, err := Aggregate(ctx, r.matcher, entry.Field, values, entry.Ontologies)
		if err != nil {
			r.metrics.FieldProcessed("failed")
			return sum, err
		}
		if err := emit(*row); err != nil {
			return sum, fmt.Errorf("writing features for %q: %w", entry.Field, err)
		}
		r.metrics.FieldProcessed("ok")
		sum.Processed++
	}
	r.metrics.ObserveStage("features", start)
	return sum, nil
}

// Mappings runs unscoped exact matching over every stored field and reports
// the ontology that most values hit. Unlike Features, every returned
// ontology of a value is counted, not just the first.
func (r *Runner) Mappings(ctx context.Context, emit func(MappingRow) error) (Summary, error) {
	start := time.Now()
	var sum Summary
	err := store.ValuesPerField(ctx, r.source, func(field string, values []string) error {
		r.logger.Info("metadata field", "field", field, "values", len(values))
		counter := NewCounter()
		for _, v := range values {
			if v == "" {
				continue
			}
			onts, err := r.matcher.Exact(ctx, v, nil)
			if err != nil {
				r.metrics.FieldProcessed("failed")
				return fmt.Errorf("field %q: %w", field, err)
			}
			for _, o := range onts {
				counter.Add(o)
			}
		}
		row := MappingRow{Field: field, TotalValues: len(values)}
		row.Ontology, row.Count = counter.Top()
		if err := emit(row); err != nil {
			return fmt.Errorf("writing mapping for %q: %w", field, err)
		}
		r.metrics.FieldProcessed("ok")
		sum.Processed++
		return nil
	})
	if err != nil {
		return sum, err
	}
	r.metrics.ObserveStage("mappings", start)
	return sum, nil
}

// Distinct reports value and distinct-value counts for every stored field.
func (r *Runner) Distinct(ctx context.Context, emit func(DistinctRow) error) (Summary, error) {
	var sum Summary
	err := store.ValuesPerField(ctx, r.source, func(field string, values []string) error {
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			seen[v] = struct{}{}
		}
		sum.Processed++
		return emit(DistinctRow{Field: field, TotalValues: len(values), DistinctValues: len(seen)})
	})
	return sum, err
}
