// Package matcher scores metadata values against the ontology term index.
// Exact mode requires a verbatim hit on a term's qname, notation or
// prefLabel; fuzzy mode accepts any analyzed-token overlap. Both return the
// ontology of each hit in relevance order.
package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

// Searcher runs term queries. Every searchindex.Index is one.
type Searcher interface {
	Search(ctx context.Context, q searchindex.Query) ([]searchindex.Hit, error)
}

// Scorer issues match queries. It is not retried: index failures are
// returned to the caller as-is.
type Scorer struct {
	index   Searcher
	size    int
	cache   *Cache
	metrics *metrics.Metrics
}

type Option func(*Scorer)

// WithCache memoizes results in c.
func WithCache(c *Cache) Option {
	return func(s *Scorer) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// WithSize caps the hits requested per query.
func WithSize(n int) Option {
	return func(s *Scorer) { s.size = n }
}

func New(index Searcher, opts ...Option) *Scorer {
	s := &Scorer{index: index}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exact returns the ontologies of terms whose qname, notation or prefLabel
// equals value verbatim. A nil or empty ontologies list means no filter.
func (s *Scorer) Exact(ctx context.Context, value string, ontologies []string) ([]string, error) {
	return s.match(ctx, searchindex.Exact, value, ontologies)
}

// Fuzzy returns the ontologies of terms sharing an analyzed token with value.
func (s *Scorer) Fuzzy(ctx context.Context, value string, ontologies []string) ([]string, error) {
	return s.match(ctx, searchindex.Fuzzy, value, ontologies)
}

func (s *Scorer) match(ctx context.Context, mode searchindex.Mode, value string, ontologies []string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	q := searchindex.Query{Mode: mode, Value: value, Ontologies: ontologies, Size: s.size}
	start := time.Now()

	var (
		ids []string
		err error
	)
	if s.cache != nil {
		ids, _, err = s.cache.GetOrCompute(ctx, q, func() ([]string, error) {
			return s.query(ctx, q)
		})
	} else {
		ids, err = s.query(ctx, q)
	}
	switch {
	case err != nil:
		s.metrics.ObserveMatch(mode.String(), "error", time.Since(start))
		return nil, fmt.Errorf("%s match for %q: %w", mode, value, err)
	case len(ids) == 0:
		s.metrics.ObserveMatch(mode.String(), "miss", time.Since(start))
	default:
		s.metrics.ObserveMatch(mode.String(), "hit", time.Since(start))
	}
	return ids, nil
}

func (s *Scorer) query(ctx context.Context, q searchindex.Query) ([]string, error) {
	hits, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Source.Ontology)
	}
	return ids, nil
}
