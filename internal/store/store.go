// Package store is the backing document store for extracted attribute
// records. Each source schema has its own table and Collection variant; both
// satisfy the same write (insert-one) and read (find-by-key, group-by-key,
// key/sample scan) contract over PostgreSQL or SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// ErrStopIteration may be returned from an iteration callback to end the scan
// early; the iterating method then returns nil.
var ErrStopIteration = errors.New("stop iteration")

// Dialect selects SQL flavour differences between the supported drivers.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// ParseDialect maps a configured driver name to its Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("store driver %q: %w", driver, apperrors.ErrUnknownBackend)
	}
}

// Collection is the per-schema view of the store.
type Collection interface {
	Schema() record.Schema
	Insert(ctx context.Context, rec record.AttributeRecord) error
	// ValuesFor returns every present value recorded for key, in insertion
	// order. Records without a value contribute nothing.
	ValuesFor(ctx context.Context, key string) ([]string, error)
	// ForEachKey calls fn once per distinct key, ordered by key. fn may use
	// the store.
	ForEachKey(ctx context.Context, fn func(key string) error) error
	// ForEachKeySample streams every (key, sample) pair in insertion order.
	// fn must not call back into the store while the scan is open.
	ForEachKeySample(ctx context.Context, fn func(key, sampleID string) error) error
}

// Store owns the database handle and the table layout.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "store"),
	}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.ddl() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	s.logger.Debug("store schema ready")
	return nil
}

// Collection returns the view for one source schema.
func (s *Store) Collection(schema record.Schema) (Collection, error) {
	switch schema {
	case record.SchemaNCBI:
		return &attributeCollection{s: s}, nil
	case record.SchemaEBI:
		return &propertyCollection{s: s}, nil
	default:
		return nil, fmt.Errorf("no collection for schema %q: %w", schema, apperrors.ErrUnknownSchema)
	}
}

func (s *Store) ddl() []string {
	id, doc := "BIGSERIAL PRIMARY KEY", "JSONB"
	ts := "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	if s.dialect == SQLite {
		id, doc = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
		ts = "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS ncbi_attributes (
			id             ` + id + `,
			sample_id      TEXT NOT NULL,
			attribute_name TEXT NOT NULL,
			value          TEXT,
			attrs          ` + doc + `
		)`,
		`CREATE INDEX IF NOT EXISTS ncbi_attributes_name_idx ON ncbi_attributes (attribute_name)`,
		`CREATE TABLE IF NOT EXISTS ebi_properties (
			id               ` + id + `,
			sample_id        TEXT NOT NULL,
			class            TEXT NOT NULL,
			attrs            ` + doc + `,
			qualified_values ` + doc + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ebi_properties_class_idx ON ebi_properties (class)`,
		`CREATE TABLE IF NOT EXISTS usage_snapshots (
			id          ` + id + `,
			run_id      TEXT NOT NULL,
			schema_name TEXT NOT NULL,
			data        ` + doc + ` NOT NULL,
			captured_at ` + ts + `
		)`,
	}
}

// rebind rewrites ? placeholders into the driver's positional form.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// forEachString runs a single-column query and calls fn per row after the
// result set is closed, so fn is free to query the store again.
func (s *Store) forEachString(ctx context.Context, query string, fn func(string) error) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return fmt.Errorf("querying store: %w", err)
	}
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()
	for _, v := range out {
		if err := fn(v); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Store) forEachPair(ctx context.Context, query string, fn func(a, b string) error) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return fmt.Errorf("querying store: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
		if err := fn(a, b); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

func jsonOrNil(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
