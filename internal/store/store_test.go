package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(sqlite.OpenTest(t), SQLite)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func ncbiRec(sample, key string, value *string) record.AttributeRecord {
	return record.AttributeRecord{SampleID: sample, Key: key, Value: value}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mongodb")
	assert.ErrorIs(t, err, apperrors.ErrUnknownBackend)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.rebind("SELECT a FROM t WHERE b = ? AND c = ?"))

	lite := &Store{dialect: SQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestAttributeCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c, err := s.Collection(record.SchemaNCBI)
	require.NoError(t, err)
	assert.Equal(t, record.SchemaNCBI, c.Schema())

	rec := ncbiRec("s1", "sex", record.StringPtr("male"))
	rec.Attributes = map[string]string{"harmonized_name": "sex"}
	require.NoError(t, c.Insert(ctx, rec))
	require.NoError(t, c.Insert(ctx, ncbiRec("s1", "age", record.StringPtr("42"))))
	require.NoError(t, c.Insert(ctx, ncbiRec("s2", "sex", nil)))
	require.NoError(t, c.Insert(ctx, ncbiRec("s2", "sex", record.StringPtr("female"))))

	values, err := c.ValuesFor(ctx, "sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"male", "female"}, values)

	values, err = c.ValuesFor(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, values)

	var keys []string
	require.NoError(t, c.ForEachKey(ctx, func(key string) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"age", "sex"}, keys)

	var pairs [][2]string
	require.NoError(t, c.ForEachKeySample(ctx, func(key, sample string) error {
		pairs = append(pairs, [2]string{key, sample})
		return nil
	}))
	assert.Equal(t, [][2]string{{"sex", "s1"}, {"age", "s1"}, {"sex", "s2"}, {"sex", "s2"}}, pairs)
}

func TestPropertyCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c, err := s.Collection(record.SchemaEBI)
	require.NoError(t, err)

	require.NoError(t, c.Insert(ctx, record.AttributeRecord{
		SampleID: "SAMEA1",
		Key:      "organism",
		Values: []record.QualifiedValue{
			{
				Value: record.StringPtr("Homo sapiens"),
				TermSource: &record.TermSourceRef{
					Name:         record.StringPtr("NCBI Taxonomy"),
					TermSourceID: record.StringPtr("9606"),
				},
			},
			{Value: nil},
			{Value: record.StringPtr("human")},
		},
	}))
	require.NoError(t, c.Insert(ctx, record.AttributeRecord{SampleID: "SAMEA2", Key: "organism"}))
	require.NoError(t, c.Insert(ctx, record.AttributeRecord{
		SampleID: "SAMEA2",
		Key:      "organism",
		Values:   []record.QualifiedValue{{Value: record.StringPtr("Mus musculus")}},
	}))

	values, err := c.ValuesFor(ctx, "organism")
	require.NoError(t, err)
	assert.Equal(t, []string{"Homo sapiens", "human", "Mus musculus"}, values)

	n := 0
	require.NoError(t, c.ForEachKeySample(ctx, func(key, sample string) error {
		n++
		return nil
	}))
	assert.Equal(t, 3, n)
}

func TestPropertyCollectionRejectsCorruptValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ebi_properties (sample_id, class, qualified_values) VALUES (?, ?, ?)`,
		"SAMEA9", "broken", `{"not":"a list"}`)
	require.NoError(t, err)

	c, err := s.Collection(record.SchemaEBI)
	require.NoError(t, err)
	_, err = c.ValuesFor(ctx, "broken")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDecodeQualifiedValuesDropsEmptyTermSource(t *testing.T) {
	qvs, err := decodeQualifiedValues([]byte(`[{"value":"x","TermSourceREF":{}}]`))
	require.NoError(t, err)
	require.Len(t, qvs, 1)
	assert.Nil(t, qvs[0].TermSource)
	assert.Equal(t, "x", *qvs[0].Value)
}

func TestStopIteration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c, err := s.Collection(record.SchemaNCBI)
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Insert(ctx, ncbiRec("s1", k, record.StringPtr("v"))))
	}

	var seen []string
	err = c.ForEachKey(ctx, func(key string) error {
		seen = append(seen, key)
		if key == "b" {
			return ErrStopIteration
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)

	count := 0
	err = c.ForEachKeySample(ctx, func(string, string) error {
		count++
		return ErrStopIteration
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCallbackErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c, err := s.Collection(record.SchemaNCBI)
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, ncbiRec("s1", "a", record.StringPtr("v"))))

	boom := errors.New("boom")
	assert.ErrorIs(t, c.ForEachKey(ctx, func(string) error { return boom }), boom)
	assert.ErrorIs(t, c.ForEachKeySample(ctx, func(string, string) error { return boom }), boom)
}

func TestValuesPerField(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c, err := s.Collection(record.SchemaNCBI)
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, ncbiRec("s1", "sex", record.StringPtr("male"))))
	require.NoError(t, c.Insert(ctx, ncbiRec("s1", "age", record.StringPtr("3"))))
	require.NoError(t, c.Insert(ctx, ncbiRec("s2", "sex", record.StringPtr("female"))))

	got := map[string][]string{}
	require.NoError(t, ValuesPerField(ctx, c, func(key string, values []string) error {
		got[key] = values
		return nil
	}))
	assert.Equal(t, map[string][]string{"age": {"3"}, "sex": {"male", "female"}}, got)
}

func TestUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Collection(record.Schema("gold"))
	assert.ErrorIs(t, err, apperrors.ErrUnknownSchema)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snap, err := s.LatestSnapshot(ctx, "ncbi")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, s.SaveSnapshot(ctx, "run-1", "ncbi", map[string]float64{"portal": 0.5}))
	require.NoError(t, s.SaveSnapshot(ctx, "run-2", "ncbi", map[string]float64{"portal": 0.75}))
	require.NoError(t, s.SaveSnapshot(ctx, "run-3", "ebi", map[string]float64{"portal": 0.1}))

	snap, err = s.LatestSnapshot(ctx, "ncbi")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "run-2", snap.RunID)
	var payload map[string]float64
	require.NoError(t, json.Unmarshal(snap.Data, &payload))
	assert.Equal(t, 0.75, payload["portal"])
	assert.False(t, snap.CapturedAt.IsZero())

	list, err := s.ListSnapshots(ctx, "ncbi", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].RunID)
	assert.Equal(t, "run-1", list[1].RunID)
}
