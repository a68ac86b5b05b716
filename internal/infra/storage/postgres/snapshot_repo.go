package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/storage"
)

// SnapshotRepo implements storage.SnapshotStore using PostgreSQL.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

type snapshotRow struct {
	CacheKey  string    `db:"cache_key"`
	SourceID  string    `db:"source_id"`
	Kind      string    `db:"kind"`
	Payload   string    `db:"payload"` // jsonb as text for both drivers
	FetchedAt time.Time `db:"fetched_at"`
}

// Save upserts a snapshot. A stored row newer than snap is kept.
func (r *SnapshotRepo) Save(ctx context.Context, snap storage.Snapshot) error {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot payload: %w", err)
	}

	query := `
		INSERT INTO source_snapshots (cache_key, source_id, kind, payload, fetched_at)
		VALUES (:cache_key, :source_id, :kind, :payload, :fetched_at)
		ON CONFLICT (cache_key) DO UPDATE
		SET source_id = EXCLUDED.source_id,
		    kind = EXCLUDED.kind,
		    payload = EXCLUDED.payload,
		    fetched_at = EXCLUDED.fetched_at
		WHERE source_snapshots.fetched_at <= EXCLUDED.fetched_at
	`
	_, err = r.db.NamedExecContext(ctx, query, snapshotRow{
		CacheKey:  snap.CacheKey,
		SourceID:  snap.SourceID,
		Kind:      snap.Kind,
		Payload:   string(payload),
		FetchedAt: snap.FetchedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the snapshot for key.
func (r *SnapshotRepo) Latest(ctx context.Context, key string) (*storage.Snapshot, error) {
	var row snapshotRow
	query := `
		SELECT cache_key, source_id, kind, payload, fetched_at
		FROM source_snapshots
		WHERE cache_key = $1
	`
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var payload domain.Payload
	if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}

	return &storage.Snapshot{
		SourceID:  row.SourceID,
		CacheKey:  row.CacheKey,
		Kind:      row.Kind,
		Payload:   payload,
		FetchedAt: row.FetchedAt,
	}, nil
}

// PruneBefore deletes snapshots older than cutoff.
func (r *SnapshotRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM source_snapshots WHERE fetched_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
