package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/sqlite"
)

type pairs [][2]string

func (p pairs) ForEachKeySample(_ context.Context, fn func(key, sampleID string) error) error {
	for _, kv := range p {
		if err := fn(kv[0], kv[1]); err != nil {
			if errors.Is(err, store.ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// three samples, four keys, one repeated key within s1
var corpus = pairs{
	{"a", "s1"}, {"b", "s1"}, {"c", "s1"}, {"a", "s1"},
	{"a", "s2"}, {"b", "s2"},
	{"a", "s3"}, {"d", "s3"},
}

func TestComputeSyntheticCorpus(t *testing.T) {
	rep, err := Compute(context.Background(), corpus, Options{Schema: record.SchemaNCBI})
	require.NoError(t, err)

	assert.Equal(t, 8, rep.RecordsProcessed)
	assert.False(t, rep.Truncated)

	require.Len(t, rep.Keys, 4)
	assert.Equal(t, KeyUsage{Key: "a", Frequency: 4, SampleCount: 3, UsageRatio: 4.0 / 3}, rep.Keys[0])
	assert.Equal(t, KeyUsage{Key: "b", Frequency: 2, SampleCount: 2, UsageRatio: 2.0 / 3}, rep.Keys[1])
	assert.Equal(t, "c", rep.Keys[2].Key)
	assert.Equal(t, "d", rep.Keys[3].Key)

	require.Len(t, rep.Samples, 3)
	assert.Equal(t, SampleUsage{SampleID: "s1", KeysUsed: 3, UsageRatio: 0.75}, rep.Samples[0])
	assert.Equal(t, SampleUsage{SampleID: "s2", KeysUsed: 2, UsageRatio: 0.5}, rep.Samples[1])
	assert.Equal(t, SampleUsage{SampleID: "s3", KeysUsed: 2, UsageRatio: 0.5}, rep.Samples[2])

	assert.InDelta(t, (0.75+0.5+0.5)/3, rep.Portal, 1e-12)
}

func TestFrequencyIsConserved(t *testing.T) {
	rep, err := Compute(context.Background(), corpus, Options{})
	require.NoError(t, err)
	sum := 0
	for _, k := range rep.Keys {
		sum += k.Frequency
	}
	assert.Equal(t, len(corpus), sum)
}

func TestPortalIsMeanOfSampleRatios(t *testing.T) {
	rep, err := Compute(context.Background(), corpus, Options{})
	require.NoError(t, err)
	mean := 0.0
	for _, s := range rep.Samples {
		mean += s.UsageRatio
	}
	mean /= float64(len(rep.Samples))
	assert.InDelta(t, mean, rep.Portal, 1e-12)
}

func TestComputeCap(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		processed int
		truncated bool
		samples   int
	}{
		{"unlimited", 0, 8, false, 3},
		{"cap below corpus", 3, 3, true, 1},
		{"cap equals corpus", 8, 8, false, 3},
		{"cap above corpus", 100, 8, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := Compute(context.Background(), corpus, Options{MaxRecords: tt.max})
			require.NoError(t, err)
			assert.Equal(t, tt.processed, rep.RecordsProcessed)
			assert.Equal(t, tt.truncated, rep.Truncated)
			assert.Len(t, rep.Samples, tt.samples)
		})
	}
}

func TestComputeEmptyCorpus(t *testing.T) {
	_, err := Compute(context.Background(), pairs{}, Options{Schema: record.SchemaEBI})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmptyDenominator)
	assert.Equal(t, apperrors.ExitNoData, apperrors.ExitCode(err))
}

func TestComputeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, corpus, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeOverSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st := store.New(sqlite.OpenTest(t), store.SQLite)
	require.NoError(t, st.EnsureSchema(ctx))
	coll, err := st.Collection(record.SchemaNCBI)
	require.NoError(t, err)
	for _, kv := range corpus {
		require.NoError(t, coll.Insert(ctx, record.AttributeRecord{SampleID: kv[1], Key: kv[0], Value: record.StringPtr("v")}))
	}

	rep, err := Compute(ctx, coll, Options{Schema: record.SchemaNCBI, MaxRecords: 2000000})
	require.NoError(t, err)
	assert.Equal(t, 8, rep.RecordsProcessed)
	assert.InDelta(t, (0.75+0.5+0.5)/3, rep.Portal, 1e-12)

	require.NoError(t, st.SaveSnapshot(ctx, "run-1", rep.Schema.String(), rep))
	snap, err := st.LatestSnapshot(ctx, "ncbi")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Contains(t, string(snap.Data), `"portal_usage"`)
}

func TestCompare(t *testing.T) {
	prev, err := Compute(context.Background(), corpus[:6], Options{Schema: record.SchemaNCBI})
	require.NoError(t, err)
	cur, err := Compute(context.Background(), pairs{{"a", "s1"}, {"d", "s1"}, {"e", "s2"}}, Options{Schema: record.SchemaNCBI})
	require.NoError(t, err)

	d := Compare(prev, cur)
	assert.Equal(t, []string{"d", "e"}, d.NewKeys)
	assert.Equal(t, []string{"b", "c"}, d.DroppedKeys)
	assert.Equal(t, -3, d.RecordsDelta)
	assert.InDelta(t, cur.Portal-prev.Portal, d.PortalDelta, 1e-9)

	same := Compare(cur, cur)
	assert.Empty(t, same.NewKeys)
	assert.Empty(t, same.DroppedKeys)
	assert.Zero(t, same.PortalDelta)
}
