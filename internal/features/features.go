// Package features derives per-field training features from how well a
// field's values match ontology terms in exact and fuzzy mode.
package features

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// Matcher resolves a value to ontology ids in relevance order.
// *matcher.Scorer implements it.
type Matcher interface {
	Exact(ctx context.Context, value string, ontologies []string) ([]string, error)
	Fuzzy(ctx context.Context, value string, ontologies []string) ([]string, error)
}

// Row is the feature vector of one field.
type Row struct {
	Field          string
	TotalValues    int
	DistinctValues int

	Exact              int
	PercExact          float64
	DistinctExact      int
	AvgNumbersExact    float64
	OntologyExact      string
	OntologyCountExact int

	Match              int
	PercMatch          float64
	DistinctMatch      int
	AvgNumbersMatch    float64
	OntologyMatch      string
	OntologyCountMatch int
}

// Header lists the report columns in Row order.
var Header = []string{
	"field", "total_values", "distinct_values",
	"exact", "perc_exact", "distinct_exact", "avg_numbers_exact", "ontology_exact", "ontology_count_exact",
	"match", "perc_match", "distinct_match", "avg_numbers_match", "ontology_match", "ontology_count_match",
}

// CSVRecord renders the row in Header order.
func (r Row) CSVRecord() []string {
	return []string{
		r.Field, strconv.Itoa(r.TotalValues), strconv.Itoa(r.DistinctValues),
		strconv.Itoa(r.Exact), formatFloat(r.PercExact), strconv.Itoa(r.DistinctExact),
		formatFloat(r.AvgNumbersExact), r.OntologyExact, strconv.Itoa(r.OntologyCountExact),
		strconv.Itoa(r.Match), formatFloat(r.PercMatch), strconv.Itoa(r.DistinctMatch),
		formatFloat(r.AvgNumbersMatch), r.OntologyMatch, strconv.Itoa(r.OntologyCountMatch),
	}
}

// DigitRatio is the share of runes in v that are decimal digits. It is
// undefined for the empty string.
func DigitRatio(v string) (float64, error) {
	total, digits := 0, 0
	for _, r := range v {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("digit ratio of empty value: %w", apperrors.ErrEmptyDenominator)
	}
	return float64(digits) / float64(total), nil
}

// modeTally accumulates the counters of one match mode.
type modeTally struct {
	count    int
	distinct map[string]struct{}
	digitSum float64
	byOnt    *Counter
}

func newModeTally() *modeTally {
	return &modeTally{distinct: make(map[string]struct{}), byOnt: NewCounter()}
}

func (t *modeTally) add(value string, ontologies []string) error {
	if len(ontologies) == 0 {
		return nil
	}
	ratio, err := DigitRatio(value)
	if err != nil {
		return err
	}
	t.count++
	t.distinct[value] = struct{}{}
	t.digitSum += ratio
	t.byOnt.Add(ontologies[0])
	return nil
}

// Aggregate scores every value of field in both modes and builds its Row.
// Empty values are counted in the totals but never queried. An empty values
// slice is rejected with ErrEmptyDenominator.
func Aggregate(ctx context.Context, m Matcher, field string, values, ontologies []string) (*Row, error) {
	total := len(values)
	if total == 0 {
		return nil, fmt.Errorf("field %q has no values: %w", field, apperrors.ErrEmptyDenominator)
	}
	distinct := make(map[string]struct{}, total)
	exact, fuzzy := newModeTally(), newModeTally()

	for _, v := range values {
		distinct[v] = struct{}{}
		if v == "" {
			continue
		}
		hits, err := m.Fuzzy(ctx, v, ontologies)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		if err := fuzzy.add(v, hits); err != nil {
			return nil, err
		}

		hits, err = m.Exact(ctx, v, ontologies)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		if err := exact.add(v, hits); err != nil {
			return nil, err
		}
	}

	n := float64(total)
	row := &Row{
		Field:          field,
		TotalValues:    total,
		DistinctValues: len(distinct),

		Exact:           exact.count,
		PercExact:       float64(exact.count) / n,
		DistinctExact:   len(exact.distinct),
		AvgNumbersExact: exact.digitSum / n,

		Match:           fuzzy.count,
		PercMatch:       float64(fuzzy.count) / n,
		DistinctMatch:   len(fuzzy.distinct),
		AvgNumbersMatch: fuzzy.digitSum / n,
	}
	row.OntologyExact, row.OntologyCountExact = exact.byOnt.Top()
	row.OntologyMatch, row.OntologyCountMatch = fuzzy.byOnt.Top()
	return row, nil
}

// Counter counts ontology ids.
type Counter struct {
	counts map[string]int
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

func (c *Counter) Add(id string) {
	c.counts[id]++
}

// Top returns the most frequent id, preferring the lexicographically smaller
// id on ties. It returns "", 0 when nothing was counted.
func (c *Counter) Top() (string, int) {
	ids := make([]string, 0, len(c.counts))
	for id := range c.counts {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", 0
	}
	sort.Slice(ids, func(i, j int) bool {
		if c.counts[ids[i]] != c.counts[ids[j]] {
			return c.counts[ids[i]] > c.counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids[0], c.counts[ids[0]]
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
