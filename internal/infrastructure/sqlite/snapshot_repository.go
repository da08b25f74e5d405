package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PanelSnapshotKey is the single key storing the last-rendered panel state
// (branches, pull requests, auth status, base branch) for cold-start
// rendering before live data arrives.
const PanelSnapshotKey = "panel"

// SnapshotRepository persists opaque JSON snapshots keyed by name.
type SnapshotRepository struct {
	db *sql.DB
}

func newSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts the payload for a key.
func (r *SnapshotRepository) Save(key string, payload []byte) error {
	_, err := r.db.Exec(
		`INSERT INTO panel_snapshots (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

// Load returns the payload for a key. The second return value reports
// whether the key existed.
func (r *SnapshotRepository) Load(key string) ([]byte, bool, error) {
	var payload string
	err := r.db.QueryRow(
		`SELECT payload FROM panel_snapshots WHERE key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return []byte(payload), true, nil
}
