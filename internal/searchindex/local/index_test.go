package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/analyzer"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

func standard(t testing.TB) analyzer.Analyzer {
	t.Helper()
	a, err := analyzer.ByName(analyzer.Standard)
	require.NoError(t, err)
	return a
}

func term(qname, ontology, label string) searchindex.Document {
	return searchindex.NewTermDocument("http://example.org/"+qname, qname, ontology, label, "")
}

func ids(hits []searchindex.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func search(t *testing.T, idx *Index, mode searchindex.Mode, value string, ontologies ...string) []searchindex.Hit {
	t.Helper()
	hits, err := idx.Search(context.Background(), searchindex.Query{Mode: mode, Value: value, Ontologies: ontologies})
	require.NoError(t, err)
	return hits
}

func TestExactIsCaseSensitiveFuzzyIsNot(t *testing.T) {
	idx := New(standard(t))
	require.NoError(t, idx.Upsert(context.Background(), term("Disease", "OGMS", "")))

	assert.Len(t, search(t, idx, searchindex.Exact, "Disease"), 1)
	assert.Empty(t, search(t, idx, searchindex.Exact, "disease"))
	assert.Len(t, search(t, idx, searchindex.Fuzzy, "disease"), 1)
	assert.Len(t, search(t, idx, searchindex.Fuzzy, "Disease"), 1)
}

func TestExactMatchesAnyExactField(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, searchindex.NewTermDocument("u1", "PATO_0000384", "PATO", "male", "")))
	require.NoError(t, idx.Upsert(ctx, searchindex.NewTermDocument("u2", "C12345", "NCIT", "", "N-17")))

	hits := search(t, idx, searchindex.Exact, "male")
	require.Len(t, hits, 1)
	assert.Equal(t, "PATO", hits[0].Source.Ontology)

	assert.Equal(t, []string{"C12345"}, ids(search(t, idx, searchindex.Exact, "N-17")))
	assert.Equal(t, []string{"PATO_0000384"}, ids(search(t, idx, searchindex.Exact, "PATO_0000384")))
	assert.Empty(t, search(t, idx, searchindex.Exact, "male organism"))
}

func TestFuzzyRanksShorterFieldsHigher(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, term("B", "UBERON", "male organism")))
	require.NoError(t, idx.Upsert(ctx, term("A", "PATO", "male")))

	hits := search(t, idx, searchindex.Fuzzy, "male")
	assert.Equal(t, []string{"A", "B"}, ids(hits))
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestTiesBreakByID(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	for _, q := range []string{"t3", "t1", "t2"} {
		require.NoError(t, idx.Upsert(ctx, term(q, "X", "liver")))
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(search(t, idx, searchindex.Exact, "liver")))
}

func TestOntologyFilter(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, term("a", "PATO", "female")))
	require.NoError(t, idx.Upsert(ctx, term("b", "EFO", "female")))

	assert.Equal(t, []string{"b"}, ids(search(t, idx, searchindex.Exact, "female", "EFO")))
	assert.Equal(t, []string{"a", "b"}, ids(search(t, idx, searchindex.Exact, "female", "EFO", "PATO")))
	assert.Empty(t, search(t, idx, searchindex.Fuzzy, "female", "NCIT"))
}

func TestSizeLimit(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		require.NoError(t, idx.Upsert(ctx, term(fmt.Sprintf("t%02d", i), "X", "blood")))
	}
	assert.Len(t, search(t, idx, searchindex.Fuzzy, "blood"), DefaultSize)

	hits, err := idx.Search(ctx, searchindex.Query{Mode: searchindex.Fuzzy, Value: "blood", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"t00", "t01", "t02"}, ids(hits))
}

func TestUpsertReplacesSameQname(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, term("Q1", "OLD", "heart")))
	require.NoError(t, idx.Upsert(ctx, term("Q1", "NEW", "lung")))

	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, search(t, idx, searchindex.Exact, "heart"))
	assert.Empty(t, search(t, idx, searchindex.Fuzzy, "heart"))
	hits := search(t, idx, searchindex.Fuzzy, "lung")
	require.Len(t, hits, 1)
	assert.Equal(t, "NEW", hits[0].Source.Ontology)
}

func TestFuzzyKeepsIdentifiersAndNumbersWhole(t *testing.T) {
	idx := New(standard(t))
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, term("PATO_0000384", "PATO", "")))
	require.NoError(t, idx.Upsert(ctx, term("UO_0000022", "UO", "5 mg")))

	assert.Empty(t, search(t, idx, searchindex.Fuzzy, "PATO"))
	assert.Empty(t, search(t, idx, searchindex.Fuzzy, "3.5"))
	assert.Equal(t, []string{"PATO_0000384"}, ids(search(t, idx, searchindex.Fuzzy, "pato_0000384")))
	assert.Equal(t, []string{"UO_0000022"}, ids(search(t, idx, searchindex.Fuzzy, "5")))
}

func TestUpsertRejectsInvalid(t *testing.T) {
	idx := New(standard(t))
	err := idx.Upsert(context.Background(), searchindex.Document{Ontology: "X"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEmptyValueHasNoHits(t *testing.T) {
	idx := New(standard(t))
	require.NoError(t, idx.Upsert(context.Background(), term("a", "X", "liver")))
	assert.Empty(t, search(t, idx, searchindex.Fuzzy, ""))
	assert.Empty(t, search(t, idx, searchindex.Exact, ""))
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "idx", SnapshotFile)

	idx, err := Open(path, standard(t))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	require.NoError(t, idx.Upsert(ctx, term("Disease", "OGMS", "disease")))
	require.NoError(t, idx.Upsert(ctx, term("PATO_0000384", "PATO", "male")))
	require.NoError(t, idx.Close())

	reopened, err := Open(path, standard(t))
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	hits := search(t, reopened, searchindex.Exact, "PATO_0000384")
	require.Len(t, hits, 1)
	assert.Equal(t, "male", hits[0].Source.PrefLabelExact)
	assert.Len(t, search(t, reopened, searchindex.Exact, "Disease"), 1)
	assert.Len(t, search(t, reopened, searchindex.Fuzzy, "MALE"), 1)
}

func TestSnapshotCorruption(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), SnapshotFile)
	idx, err := Open(path, standard(t))
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, term("a", "X", "liver")))
	require.NoError(t, idx.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[HeaderSize+2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path, standard(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	require.NoError(t, os.WriteFile(path, []byte("this file is plainly not a term index snapshot"), 0o644))
	_, err = Open(path, standard(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestFlushWithoutPathIsNoop(t *testing.T) {
	idx := New(standard(t))
	require.NoError(t, idx.Upsert(context.Background(), term("a", "X", "liver")))
	require.NoError(t, idx.Flush(context.Background()))
}
