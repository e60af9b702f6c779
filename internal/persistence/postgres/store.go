package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Backend stores flow records as JSONB rows keyed by entry name.
type Backend struct {
	db *DB
}

func NewBackend(db *DB) *Backend {
	return &Backend{db: db}
}

func (b *Backend) Put(ctx context.Context, entry string, rec domain.FlowRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode flow record: %w", err)
	}

	query := `
		INSERT INTO flow_records (entry, record, stored_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (entry) DO UPDATE
		SET record = EXCLUDED.record, stored_at = EXCLUDED.stored_at, updated_at = now()
	`
	if _, err := b.db.Pool.Exec(ctx, query, entry, payload, rec.StoredAt); err != nil {
		return fmt.Errorf("failed to store flow %q: %w", entry, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, entry string) (domain.FlowRecord, bool, error) {
	query := `SELECT record FROM flow_records WHERE entry = $1`

	var payload []byte
	err := b.db.Pool.QueryRow(ctx, query, entry).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FlowRecord{}, false, nil
	}
	if err != nil {
		return domain.FlowRecord{}, false, fmt.Errorf("failed to load flow %q: %w", entry, err)
	}

	var rec domain.FlowRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.FlowRecord{}, false, fmt.Errorf("failed to decode flow %q: %w", entry, err)
	}
	return rec, true, nil
}

func (b *Backend) List(ctx context.Context) (map[string]domain.FlowRecord, error) {
	rows, err := b.db.Pool.Query(ctx, `SELECT entry, record FROM flow_records ORDER BY entry`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	out := map[string]domain.FlowRecord{}
	for rows.Next() {
		var entry string
		var payload []byte
		if err := rows.Scan(&entry, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		var rec domain.FlowRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode flow %q: %w", entry, err)
		}
		out[entry] = rec
	}
	return out, rows.Err()
}
