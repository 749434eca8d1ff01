// Package searchindex defines the ontology term document and the query
// contract shared by the search index backends.
package searchindex

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// Document is one indexed ontology term. Every searchable attribute is
// stored twice: verbatim in the *_exact field and analyzed in the plain one.
type Document struct {
	ClassName      string `json:"class_name"`
	ClassNameExact string `json:"class_name_exact"`
	Qname          string `json:"qname"`
	QnameExact     string `json:"qname_exact"`
	Ontology       string `json:"ontology"`
	PrefLabel      string `json:"prefLabel,omitempty"`
	PrefLabelExact string `json:"prefLabel_exact,omitempty"`
	Notation       string `json:"notation,omitempty"`
	NotationExact  string `json:"notation_exact,omitempty"`
}

// NewTermDocument builds a document with both field variants filled from the
// same values. Empty prefLabel or notation leave those fields unset.
func NewTermDocument(classURI, qname, ontology, prefLabel, notation string) Document {
	return Document{
		ClassName:      classURI,
		ClassNameExact: classURI,
		Qname:          qname,
		QnameExact:     qname,
		Ontology:       ontology,
		PrefLabel:      prefLabel,
		PrefLabelExact: prefLabel,
		Notation:       notation,
		NotationExact:  notation,
	}
}

// ID is the document identity. Later writes with the same qname replace
// earlier ones.
func (d Document) ID() string {
	return d.Qname
}

// Validate rejects documents that cannot be indexed.
func (d Document) Validate() error {
	if d.Qname == "" {
		return fmt.Errorf("term %q has no qname: %w", d.ClassName, apperrors.ErrInvalidInput)
	}
	if d.Ontology == "" {
		return fmt.Errorf("term %q has no ontology: %w", d.Qname, apperrors.ErrInvalidInput)
	}
	return nil
}

// Mode selects how a query value is compared with indexed terms.
type Mode int

const (
	// Exact requires verbatim, case-sensitive equality on a *_exact field.
	Exact Mode = iota
	// Fuzzy matches on any shared analyzed token.
	Fuzzy
)

func (m Mode) String() string {
	if m == Fuzzy {
		return "fuzzy"
	}
	return "exact"
}

// Query is a term lookup: Value must match the qname, notation or prefLabel
// of a term, and when Ontologies is non-empty the term's ontology must be in
// it.
type Query struct {
	Mode       Mode
	Value      string
	Ontologies []string
	// Size caps the number of hits; 0 leaves the backend default.
	Size int
}

// Hit is one matching document in relevance order.
type Hit struct {
	ID     string
	Score  float64
	Source Document
}

// Index stores term documents and answers term queries.
type Index interface {
	Upsert(ctx context.Context, doc Document) error
	Search(ctx context.Context, q Query) ([]Hit, error)
	// Flush makes previously upserted documents durable and searchable.
	Flush(ctx context.Context) error
	Close() error
}
