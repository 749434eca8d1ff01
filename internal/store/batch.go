package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
)

// DefaultBatchSize is the number of records committed per transaction.
const DefaultBatchSize = 1000

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// txInserter is implemented by both collections.
type txInserter interface {
	insert(ctx context.Context, ex execer, rec record.AttributeRecord) error
}

// InTx runs fn inside one transaction, committing when fn returns nil and
// rolling back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// BatchInserter writes the records of one collection in transactions of a
// fixed size. Records are not visible to readers until their batch commits;
// Flush commits a partial batch.
type BatchInserter struct {
	s         *Store
	col       txInserter
	size      int
	pending   []record.AttributeRecord
	committed int
}

// NewBatchInserter returns a writer for schema. A size below 1 selects
// DefaultBatchSize.
func (s *Store) NewBatchInserter(schema record.Schema, size int) (*BatchInserter, error) {
	col, err := s.Collection(schema)
	if err != nil {
		return nil, err
	}
	if size < 1 {
		size = DefaultBatchSize
	}
	return &BatchInserter{
		s:       s,
		col:     col.(txInserter),
		size:    size,
		pending: make([]record.AttributeRecord, 0, size),
	}, nil
}

func (b *BatchInserter) Insert(ctx context.Context, rec record.AttributeRecord) error {
	b.pending = append(b.pending, rec)
	if len(b.pending) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush commits the pending records. On error none of them are stored and
// they are discarded.
func (b *BatchInserter) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	n := len(b.pending)
	err := b.s.InTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range b.pending {
			if err := b.col.insert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	clear(b.pending)
	b.pending = b.pending[:0]
	if err != nil {
		return fmt.Errorf("committing batch of %d records: %w", n, err)
	}
	b.committed += n
	return nil
}

// Committed counts the records stored so far.
func (b *BatchInserter) Committed() int { return b.committed }
