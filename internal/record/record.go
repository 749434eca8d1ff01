// Package record defines the normalized attribute records extracted from the
// biosample metadata dumps and the schema selector shared by the extraction,
// storage and statistics stages.
package record

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// Schema identifies one of the two source metadata layouts.
type Schema string

const (
	// SchemaNCBI is the flat BioSample/Attribute layout: one value per key.
	SchemaNCBI Schema = "ncbi"
	// SchemaEBI is the BioSample/Property/QualifiedValue layout: zero or
	// more values per key, each optionally tagged with a term source.
	SchemaEBI Schema = "ebi"
)

// ParseSchema validates a schema name given on the command line or in config.
func ParseSchema(name string) (Schema, error) {
	switch Schema(name) {
	case SchemaNCBI, SchemaEBI:
		return Schema(name), nil
	default:
		return "", fmt.Errorf("schema %q: %w", name, apperrors.ErrUnknownSchema)
	}
}

func (s Schema) String() string {
	return string(s)
}

// KeyAttribute is the XML attribute that names the metadata key.
func (s Schema) KeyAttribute() string {
	if s == SchemaEBI {
		return "class"
	}
	return "attribute_name"
}

// AttributeRecord is one observed (key, value, sample) entry. Under SchemaNCBI
// Value is set (nil when the element had no text) and Values is empty; under
// SchemaEBI Values holds the property's qualified values.
type AttributeRecord struct {
	SampleID   string            `json:"sample_id"`
	Key        string            `json:"key"`
	Value      *string           `json:"value,omitempty"`
	Values     []QualifiedValue  `json:"values,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// QualifiedValue is one value of a schema B property.
type QualifiedValue struct {
	Value      *string        `json:"value,omitempty"`
	TermSource *TermSourceRef `json:"TermSourceREF,omitempty"`
}

// TermSourceRef points at the controlled vocabulary a value was taken from.
type TermSourceRef struct {
	Name         *string `json:"Name,omitempty"`
	URI          *string `json:"URI,omitempty"`
	TermSourceID *string `json:"TermSourceID,omitempty"`
}

// Empty reports whether no part of the reference was present.
func (t *TermSourceRef) Empty() bool {
	return t == nil || (t.Name == nil && t.URI == nil && t.TermSourceID == nil)
}

// PresentValues returns the record's non-nil values in document order.
func (r AttributeRecord) PresentValues() []string {
	if r.Value != nil {
		return []string{*r.Value}
	}
	out := make([]string, 0, len(r.Values))
	for _, qv := range r.Values {
		if qv.Value != nil {
			out = append(out, *qv.Value)
		}
	}
	return out
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
