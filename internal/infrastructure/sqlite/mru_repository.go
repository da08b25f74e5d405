package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/zjrosen/switchyard/internal/mru"
)

// MRURepository implements mru.Persistence using SQLite.
type MRURepository struct {
	db *sql.DB
}

var _ mru.Persistence = (*MRURepository)(nil)

func newMRURepository(db *sql.DB) *MRURepository {
	return &MRURepository{db: db}
}

// Load returns the stored branch list for a repository path, ordered by
// position. A repository never seen before yields an empty list.
func (r *MRURepository) Load(repoPath string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT branch FROM mru_branches WHERE repo_path = ? ORDER BY position`,
		repoPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load mru list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var branches []string
	for rows.Next() {
		var branch string
		if err := rows.Scan(&branch); err != nil {
			return nil, fmt.Errorf("failed to scan mru row: %w", err)
		}
		branches = append(branches, branch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mru rows: %w", err)
	}
	return branches, nil
}

// Save replaces the stored branch list for a repository path in a single
// transaction, so a concurrent writer loses wholesale rather than
// interleaving with this write.
func (r *MRURepository) Save(repoPath string, branches []string) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin mru save: %w", err)
	}
	defer func() {
		if err != nil {
			if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
				err = errors.Join(err, errRollback)
			}
		}
	}()

	if _, err = tx.Exec(`DELETE FROM mru_branches WHERE repo_path = ?`, repoPath); err != nil {
		return fmt.Errorf("failed to clear mru list: %w", err)
	}
	for i, branch := range branches {
		if _, err = tx.Exec(
			`INSERT INTO mru_branches (repo_path, position, branch) VALUES (?, ?, ?)`,
			repoPath, i, branch,
		); err != nil {
			return fmt.Errorf("failed to insert mru row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mru save: %w", err)
	}
	return nil
}
