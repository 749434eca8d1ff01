// Package ontology loads ontology term graphs (SKOS prefLabel and notation
// triples in N-Triples form) and turns every subject into an indexable term
// document.
package ontology

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/knakk/rdf"
)

const (
	SKOSPrefLabel = "http://www.w3.org/2004/02/skos/core#prefLabel"
	SKOSNotation  = "http://www.w3.org/2004/02/skos/core#notation"
)

// Term is what the graph knows about one subject.
type Term struct {
	URI       string
	PrefLabel string
	Notation  string
}

// Graph collects the subjects of one or more N-Triples documents.
type Graph struct {
	order []string
	terms map[string]*Term
}

func NewGraph() *Graph {
	return &Graph{terms: make(map[string]*Term)}
}

// ParseFile adds the triples of the N-Triples file at path.
func (g *Graph) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := g.Parse(f); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Parse adds the triples read from r. The first non-empty prefLabel and
// notation literal of a subject win.
func (g *Graph) Parse(r io.Reader) error {
	dec := rdf.NewTripleDecoder(r, rdf.NTriples)
	for {
		tr, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		t := g.term(tr.Subj.String())
		if tr.Obj.Type() != rdf.TermLiteral {
			continue
		}
		value := tr.Obj.String()
		if value == "" {
			continue
		}
		switch tr.Pred.String() {
		case SKOSPrefLabel:
			if t.PrefLabel == "" {
				t.PrefLabel = value
			}
		case SKOSNotation:
			if t.Notation == "" {
				t.Notation = value
			}
		}
	}
}

func (g *Graph) term(uri string) *Term {
	t, ok := g.terms[uri]
	if !ok {
		t = &Term{URI: uri}
		g.terms[uri] = t
		g.order = append(g.order, uri)
	}
	return t
}

// Terms returns the distinct subjects in first-seen order.
func (g *Graph) Terms() []Term {
	out := make([]Term, 0, len(g.order))
	for _, uri := range g.order {
		out = append(out, *g.terms[uri])
	}
	return out
}

// Len counts the distinct subjects.
func (g *Graph) Len() int {
	return len(g.order)
}
