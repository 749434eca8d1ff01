package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
)

func TestBatchInserterCommitsOnFullBatchAndFlush(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b, err := s.NewBatchInserter(record.SchemaNCBI, 2)
	require.NoError(t, err)
	c, err := s.Collection(record.SchemaNCBI)
	require.NoError(t, err)

	require.NoError(t, b.Insert(ctx, ncbiRec("s1", "sex", record.StringPtr("male"))))
	values, err := c.ValuesFor(ctx, "sex")
	require.NoError(t, err)
	assert.Empty(t, values, "pending records stay invisible")
	assert.Equal(t, 0, b.Committed())

	require.NoError(t, b.Insert(ctx, ncbiRec("s2", "sex", record.StringPtr("female"))))
	assert.Equal(t, 2, b.Committed())

	require.NoError(t, b.Insert(ctx, ncbiRec("s3", "sex", record.StringPtr("male"))))
	assert.Equal(t, 2, b.Committed())
	require.NoError(t, b.Flush(ctx))
	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, 3, b.Committed())

	values, err = c.ValuesFor(ctx, "sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"male", "female", "male"}, values)
}

func TestBatchInserterDefaultSize(t *testing.T) {
	s := newTestStore(t)
	b, err := s.NewBatchInserter(record.SchemaEBI, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, b.size)

	_, err = s.NewBatchInserter(record.Schema("gold"), 10)
	assert.Error(t, err)
}

func TestBatchInserterDiscardsFailedBatch(t *testing.T) {
	s := newTestStore(t)
	b, err := s.NewBatchInserter(record.SchemaNCBI, 10)
	require.NoError(t, err)
	require.NoError(t, b.Insert(context.Background(), ncbiRec("s1", "sex", record.StringPtr("male"))))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = b.Flush(cancelled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "committing batch of 1 records")
	assert.Equal(t, 0, b.Committed())

	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 0, b.Committed())
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c, err := s.Collection(record.SchemaNCBI)
	require.NoError(t, err)
	boom := errors.New("boom")

	err = s.InTx(ctx, func(tx *sql.Tx) error {
		if err := c.(txInserter).insert(ctx, tx, ncbiRec("s1", "sex", record.StringPtr("male"))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	values, err := c.ValuesFor(ctx, "sex")
	require.NoError(t, err)
	assert.Empty(t, values)
}
