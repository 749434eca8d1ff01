// Package local is an embedded ontology term index. Exact fields are held in
// hash maps keyed by the verbatim value, analyzed fields in per-field
// inverted indexes scored with BM25. The whole index can be persisted to a
// single snapshot file and reloaded on open.
package local

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/analyzer"
)

// DefaultSize is the hit limit applied when a query does not set one.
const DefaultSize = 10

const (
	fieldQname     = "qname"
	fieldNotation  = "notation"
	fieldPrefLabel = "prefLabel"
)

var searchFields = []string{fieldQname, fieldNotation, fieldPrefLabel}

type posting struct {
	Frequency int
	Positions []int
}

type stored struct {
	doc searchindex.Document
	// analyzed length per field
	lengths map[string]int
}

// Index is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	analyzer analyzer.Analyzer
	docs     map[string]*stored
	// field -> verbatim value -> doc ids
	exact map[string]map[string]map[string]struct{}
	// field -> term -> doc id -> posting
	postings map[string]map[string]map[string]*posting
	// field -> total analyzed length over all docs
	totalLen map[string]int

	path   string
	dirty  bool
	logger *slog.Logger
}

// New returns an empty in-memory index.
func New(a analyzer.Analyzer) *Index {
	idx := &Index{
		analyzer: a,
		docs:     make(map[string]*stored),
		exact:    make(map[string]map[string]map[string]struct{}),
		postings: make(map[string]map[string]map[string]*posting),
		totalLen: make(map[string]int),
		logger:   slog.Default().With("component", "local-index"),
	}
	for _, f := range searchFields {
		idx.exact[f] = make(map[string]map[string]struct{})
		idx.postings[f] = make(map[string]map[string]*posting)
	}
	return idx
}

// Upsert indexes doc under doc.ID(), replacing any earlier document with the
// same id.
func (idx *Index) Upsert(_ context.Context, doc searchindex.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.put(doc)
	idx.dirty = true
	return nil
}

func (idx *Index) put(doc searchindex.Document) {
	id := doc.ID()
	if old, ok := idx.docs[id]; ok {
		idx.remove(id, old)
	}
	s := &stored{doc: doc, lengths: make(map[string]int, len(searchFields))}
	for _, f := range searchFields {
		if v := exactValue(doc, f); v != "" {
			ids, ok := idx.exact[f][v]
			if !ok {
				ids = make(map[string]struct{})
				idx.exact[f][v] = ids
			}
			ids[id] = struct{}{}
		}
		tokens := idx.analyzer.Tokenize(analyzedValue(doc, f))
		for _, tok := range tokens {
			byDoc, ok := idx.postings[f][tok.Term]
			if !ok {
				byDoc = make(map[string]*posting)
				idx.postings[f][tok.Term] = byDoc
			}
			p, ok := byDoc[id]
			if !ok {
				p = &posting{Positions: make([]int, 0, 2)}
				byDoc[id] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, tok.Position)
		}
		s.lengths[f] = len(tokens)
		idx.totalLen[f] += len(tokens)
	}
	idx.docs[id] = s
}

func (idx *Index) remove(id string, s *stored) {
	for _, f := range searchFields {
		if v := exactValue(s.doc, f); v != "" {
			if ids, ok := idx.exact[f][v]; ok {
				delete(ids, id)
				if len(ids) == 0 {
					delete(idx.exact[f], v)
				}
			}
		}
		for _, term := range idx.analyzer.Terms(analyzedValue(s.doc, f)) {
			if byDoc, ok := idx.postings[f][term]; ok {
				delete(byDoc, id)
				if len(byDoc) == 0 {
					delete(idx.postings[f], term)
				}
			}
		}
		idx.totalLen[f] -= s.lengths[f]
	}
	delete(idx.docs, id)
}

// Search returns matching documents ordered by score, then id.
func (idx *Index) Search(ctx context.Context, q searchindex.Query) ([]searchindex.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var scores map[string]float64
	if q.Mode == searchindex.Exact {
		scores = idx.scoreExact(q.Value)
	} else {
		scores = idx.scoreFuzzy(q.Value)
	}

	allowed := make(map[string]struct{}, len(q.Ontologies))
	for _, o := range q.Ontologies {
		allowed[o] = struct{}{}
	}
	hits := make([]searchindex.Hit, 0, len(scores))
	for id, score := range scores {
		s := idx.docs[id]
		if len(allowed) > 0 {
			if _, ok := allowed[s.doc.Ontology]; !ok {
				continue
			}
		}
		hits = append(hits, searchindex.Hit{ID: id, Score: score, Source: s.doc})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	size := q.Size
	if size <= 0 {
		size = DefaultSize
	}
	if len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

// scoreExact adds, per exact field holding the verbatim value, that value's
// inverse document frequency.
func (idx *Index) scoreExact(value string) map[string]float64 {
	scores := make(map[string]float64)
	total := int64(len(idx.docs))
	for _, f := range searchFields {
		ids := idx.exact[f][value]
		if len(ids) == 0 {
			continue
		}
		w := computeIDF(total, int64(len(ids)))
		for id := range ids {
			scores[id] += w
		}
	}
	return scores
}

// scoreFuzzy sums the BM25 score of every analyzed query term over the
// searchable fields.
func (idx *Index) scoreFuzzy(value string) map[string]float64 {
	scores := make(map[string]float64)
	terms := idx.analyzer.Terms(value)
	if len(terms) == 0 {
		return scores
	}
	total := int64(len(idx.docs))
	for _, f := range searchFields {
		avgLen := 0.0
		if total > 0 {
			avgLen = float64(idx.totalLen[f]) / float64(total)
		}
		for _, term := range terms {
			byDoc := idx.postings[f][term]
			if len(byDoc) == 0 {
				continue
			}
			idf := computeIDF(total, int64(len(byDoc)))
			for id, p := range byDoc {
				tf := computeTFNorm(float64(p.Frequency), float64(idx.docs[id].lengths[f]), avgLen)
				scores[id] += idf * tf
			}
		}
	}
	return scores
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Flush writes the snapshot file when the index was opened from a path and
// has changed since the last flush.
func (idx *Index) Flush(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.path == "" || !idx.dirty {
		return nil
	}
	if err := writeSnapshot(idx.path, idx.sortedDocs()); err != nil {
		return err
	}
	idx.dirty = false
	idx.logger.Info("index snapshot written", "path", idx.path, "docs", len(idx.docs))
	return nil
}

// Close flushes pending changes.
func (idx *Index) Close() error {
	return idx.Flush(context.Background())
}

func (idx *Index) sortedDocs() []searchindex.Document {
	out := make([]searchindex.Document, 0, len(idx.docs))
	for _, s := range idx.docs {
		out = append(out, s.doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func exactValue(doc searchindex.Document, field string) string {
	switch field {
	case fieldQname:
		return doc.QnameExact
	case fieldNotation:
		return doc.NotationExact
	default:
		return doc.PrefLabelExact
	}
}

func analyzedValue(doc searchindex.Document, field string) string {
	switch field {
	case fieldQname:
		return doc.Qname
	case fieldNotation:
		return doc.Notation
	default:
		return doc.PrefLabel
	}
}

var _ searchindex.Index = (*Index)(nil)
