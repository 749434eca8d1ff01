package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// attributeCollection stores schema A records: one value per row.
type attributeCollection struct {
	s *Store
}

func (c *attributeCollection) Schema() record.Schema { return record.SchemaNCBI }

func (c *attributeCollection) Insert(ctx context.Context, rec record.AttributeRecord) error {
	return c.insert(ctx, c.s.db, rec)
}

func (c *attributeCollection) insert(ctx context.Context, ex execer, rec record.AttributeRecord) error {
	attrs, err := marshalAttrs(rec.Attributes)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		c.s.rebind(`INSERT INTO ncbi_attributes (sample_id, attribute_name, value, attrs) VALUES (?, ?, ?, ?)`),
		rec.SampleID, rec.Key, rec.Value, jsonOrNil(attrs),
	)
	if err != nil {
		return fmt.Errorf("inserting ncbi attribute: %w", err)
	}
	return nil
}

func (c *attributeCollection) ValuesFor(ctx context.Context, key string) ([]string, error) {
	rows, err := c.s.db.QueryContext(ctx,
		c.s.rebind(`SELECT value FROM ncbi_attributes WHERE attribute_name = ? AND value IS NOT NULL ORDER BY id`),
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("querying values for %q: %w", key, err)
	}
	defer rows.Close()
	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (c *attributeCollection) ForEachKey(ctx context.Context, fn func(key string) error) error {
	return c.s.forEachString(ctx,
		`SELECT attribute_name FROM ncbi_attributes GROUP BY attribute_name ORDER BY attribute_name`, fn)
}

func (c *attributeCollection) ForEachKeySample(ctx context.Context, fn func(key, sampleID string) error) error {
	return c.s.forEachPair(ctx, `SELECT attribute_name, sample_id FROM ncbi_attributes ORDER BY id`, fn)
}

// propertyCollection stores schema B records: the qualified values of one
// property are kept together as a JSON array.
type propertyCollection struct {
	s *Store
}

func (c *propertyCollection) Schema() record.Schema { return record.SchemaEBI }

func (c *propertyCollection) Insert(ctx context.Context, rec record.AttributeRecord) error {
	return c.insert(ctx, c.s.db, rec)
}

func (c *propertyCollection) insert(ctx context.Context, ex execer, rec record.AttributeRecord) error {
	attrs, err := marshalAttrs(rec.Attributes)
	if err != nil {
		return err
	}
	values := rec.Values
	if values == nil {
		values = []record.QualifiedValue{}
	}
	qv, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshaling qualified values: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		c.s.rebind(`INSERT INTO ebi_properties (sample_id, class, attrs, qualified_values) VALUES (?, ?, ?, ?)`),
		rec.SampleID, rec.Key, jsonOrNil(attrs), string(qv),
	)
	if err != nil {
		return fmt.Errorf("inserting ebi property: %w", err)
	}
	return nil
}

func (c *propertyCollection) ValuesFor(ctx context.Context, key string) ([]string, error) {
	rows, err := c.s.db.QueryContext(ctx,
		c.s.rebind(`SELECT id, qualified_values FROM ebi_properties WHERE class = ? ORDER BY id`),
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("querying values for %q: %w", key, err)
	}
	defer rows.Close()
	values := make([]string, 0)
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning qualified values: %w", err)
		}
		qvs, err := decodeQualifiedValues(raw)
		if err != nil {
			return nil, fmt.Errorf("ebi property %d: %w", id, err)
		}
		values = append(values, record.AttributeRecord{Values: qvs}.PresentValues()...)
	}
	return values, rows.Err()
}

func (c *propertyCollection) ForEachKey(ctx context.Context, fn func(key string) error) error {
	return c.s.forEachString(ctx, `SELECT class FROM ebi_properties GROUP BY class ORDER BY class`, fn)
}

func (c *propertyCollection) ForEachKeySample(ctx context.Context, fn func(key, sampleID string) error) error {
	return c.s.forEachPair(ctx, `SELECT class, sample_id FROM ebi_properties ORDER BY id`, fn)
}

func marshalAttrs(attrs map[string]string) ([]byte, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshaling attributes: %w", err)
	}
	return b, nil
}

// decodeQualifiedValues validates the stored JSON shape of a property's
// values. A term source with no fields set is normalised to nil.
func decodeQualifiedValues(raw []byte) ([]record.QualifiedValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var qvs []record.QualifiedValue
	if err := json.Unmarshal(raw, &qvs); err != nil {
		return nil, fmt.Errorf("decoding qualified values: %w: %v", apperrors.ErrInvalidInput, err)
	}
	for i := range qvs {
		if qvs[i].TermSource.Empty() {
			qvs[i].TermSource = nil
		}
	}
	return qvs, nil
}

// FieldValues is the read side needed to group values by key.
type FieldValues interface {
	ValuesFor(ctx context.Context, key string) ([]string, error)
	ForEachKey(ctx context.Context, fn func(key string) error) error
}

// ValuesPerField walks every key in c and hands fn the key's present values.
func ValuesPerField(ctx context.Context, c FieldValues, fn func(key string, values []string) error) error {
	return c.ForEachKey(ctx, func(key string) error {
		values, err := c.ValuesFor(ctx, key)
		if err != nil {
			return err
		}
		return fn(key, values)
	})
}
