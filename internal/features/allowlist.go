package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// OntologyTermKind marks control-file rows whose field is matched against
// ontology terms.
const OntologyTermKind = "ontology_term"

// FieldOntologies scopes matching of one field to a set of ontologies.
type FieldOntologies struct {
	Field      string
	Ontologies []string
}

// AllowList is the ordered set of fields to score.
type AllowList struct {
	Entries []FieldOntologies
}

// LoadAllowList reads the control file at path.
func LoadAllowList(path string) (*AllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening allow-list: %w", err)
	}
	defer f.Close()
	return ParseAllowList(f)
}

// ParseAllowList reads rows of field,kind,ontologies. Only rows whose kind is
// ontology_term are kept; ontologies are pipe-separated. A field listed twice
// keeps its first position and its last ontology set.
func ParseAllowList(r io.Reader) (*AllowList, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	al := &AllowList{}
	pos := make(map[string]int)
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading allow-list: %w: %v", apperrors.ErrInvalidInput, err)
		}
		if len(row) < 2 || row[1] != OntologyTermKind {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("allow-list line %d: missing ontologies column: %w", line, apperrors.ErrInvalidInput)
		}
		entry := FieldOntologies{Field: row[0], Ontologies: splitOntologies(row[2])}
		if i, ok := pos[entry.Field]; ok {
			al.Entries[i] = entry
			continue
		}
		pos[entry.Field] = len(al.Entries)
		al.Entries = append(al.Entries, entry)
	}
	return al, nil
}

func splitOntologies(s string) []string {
	var out []string
	for _, o := range strings.Split(s, "|") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
