package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Snapshot is one persisted usage report.
type Snapshot struct {
	RunID      string
	Schema     string
	Data       json.RawMessage
	CapturedAt time.Time
}

// SaveSnapshot persists a JSON-encodable report for one run and schema.
func (s *Store) SaveSnapshot(ctx context.Context, runID, schema string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO usage_snapshots (run_id, schema_name, data, captured_at) VALUES (?, ?, ?, ?)`),
		runID, schema, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving usage snapshot: %w", err)
	}
	s.logger.Info("usage snapshot saved", "run_id", runID, "schema", schema, "bytes", len(data))
	return nil
}

// LatestSnapshot loads the most recent snapshot for schema.
// Returns nil, nil if none exists yet.
func (s *Store) LatestSnapshot(ctx context.Context, schema string) (*Snapshot, error) {
	var (
		snap Snapshot
		data []byte
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT run_id, schema_name, data, captured_at FROM usage_snapshots
			WHERE schema_name = ? ORDER BY id DESC LIMIT 1`),
		schema,
	).Scan(&snap.RunID, &snap.Schema, &data, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	snap.Data = json.RawMessage(data)
	return &snap, nil
}

// ListSnapshots returns the last limit snapshots for schema, newest first.
func (s *Store) ListSnapshots(ctx context.Context, schema string, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT run_id, schema_name, data, captured_at FROM usage_snapshots
			WHERE schema_name = ? ORDER BY id DESC LIMIT ?`),
		schema, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			snap Snapshot
			data []byte
		)
		if err := rows.Scan(&snap.RunID, &snap.Schema, &data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if !json.Valid(data) {
			s.logger.Warn("skipping corrupt snapshot", "run_id", snap.RunID)
			continue
		}
		snap.Data = json.RawMessage(data)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
