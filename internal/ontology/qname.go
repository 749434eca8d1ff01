package ontology

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
)

// Qname derives the compact local name of a term URI: the fragment of the
// last path segment when it has one, otherwise the last non-empty segment.
func Qname(uri string) string {
	parts := strings.Split(uri, "/")
	last := parts[len(parts)-1]
	if i := strings.LastIndex(last, "#"); i >= 0 {
		if frag := last[i+1:]; frag != "" {
			return frag
		}
		parts[len(parts)-1] = last[:i]
	}
	for j := len(parts) - 1; j >= 0; j-- {
		if parts[j] != "" {
			return parts[j]
		}
	}
	return ""
}

// OntologyName is the ontology identifier encoded in a source file name: the
// text before the first "--".
func OntologyName(filename string) string {
	name, _, _ := strings.Cut(filename, "--")
	return name
}

// Document builds the index document of t.
func (t Term) Document(ontology string) searchindex.Document {
	return searchindex.NewTermDocument(t.URI, Qname(t.URI), ontology, t.PrefLabel, t.Notation)
}
