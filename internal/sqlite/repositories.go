// File path: internal/sqlite/repositories.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// NewRepository is the payload for a provisional registration row. The row is
// created in pending-ledger state; ConfirmRepository assigns the ledger id.
type NewRepository struct {
	OwnerAddress string
	SourceURL    string
	ContentHash  string
	Fingerprint  string
	KeyFeatures  []string
	LicenseType  string
	Metadata     map[string]string
}

// InsertRepository creates a provisional registration row. A second active
// row with the same content hash returns ErrDuplicateHash; the unique index
// arbitrates concurrent registrations.
func (s *Store) InsertRepository(ctx context.Context, repo NewRepository) (Repository, error) {
	now := time.Now().UTC()
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        INSERT INTO repositories
                                (owner_address, source_url, content_hash, fingerprint,
                                 key_features, license_type, is_active, ledger_state,
                                 metadata, registered_at, updated_at)
                        VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
			repo.OwnerAddress, repo.SourceURL, repo.ContentHash, repo.Fingerprint,
			encodeStringList(repo.KeyFeatures), repo.LicenseType, LedgerStatePending,
			encodeStringMap(repo.Metadata), now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateHash
			}
			return fmt.Errorf("insert repository: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("repository insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return Repository{}, err
	}
	return s.RepositoryByID(ctx, id)
}

// RepositoryByID fetches a single repository row.
func (s *Store) RepositoryByID(ctx context.Context, id int64) (Repository, error) {
	var row repositoryRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM repositories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	if err != nil {
		return Repository{}, fmt.Errorf("select repository: %w", err)
	}
	return row.toRepository(), nil
}

// RepositoryByHash fetches the active repository with the given content hash.
func (s *Store) RepositoryByHash(ctx context.Context, hash string) (Repository, error) {
	var row repositoryRow
	err := s.db.GetContext(ctx, &row, `
                SELECT * FROM repositories WHERE content_hash = ? AND is_active = 1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	if err != nil {
		return Repository{}, fmt.Errorf("select repository by hash: %w", err)
	}
	return row.toRepository(), nil
}

// RepositoryByLedgerID fetches the repository confirmed under a ledger id.
func (s *Store) RepositoryByLedgerID(ctx context.Context, ledgerID int64) (Repository, error) {
	var row repositoryRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM repositories WHERE ledger_id = ?`, ledgerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, ErrNotFound
	}
	if err != nil {
		return Repository{}, fmt.Errorf("select repository by ledger id: %w", err)
	}
	return row.toRepository(), nil
}

// ConfirmRepository records the ledger id for a provisional row. The ledger
// id is written exactly once; confirming a row that already carries one, or
// one no longer pending, returns ErrInvalidState.
func (s *Store) ConfirmRepository(ctx context.Context, id, ledgerID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        UPDATE repositories
                        SET ledger_id = ?, ledger_state = ?, updated_at = ?
                        WHERE id = ? AND ledger_id IS NULL AND ledger_state = ?`,
			ledgerID, LedgerStateConfirmed, time.Now().UTC(), id, LedgerStatePending)
		if err != nil {
			return fmt.Errorf("confirm repository: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("confirm repository rows: %w", err)
		}
		if affected == 0 {
			return ErrInvalidState
		}
		return nil
	})
}

// MarkRepositoryFailed moves a provisional row to failed-ledger and
// deactivates it so the content hash can be registered again.
func (s *Store) MarkRepositoryFailed(ctx context.Context, id int64, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        UPDATE repositories
                        SET ledger_state = ?, is_active = 0, updated_at = ?
                        WHERE id = ? AND ledger_id IS NULL AND ledger_state = ?`,
			LedgerStateFailed, time.Now().UTC(), id, LedgerStatePending)
		if err != nil {
			return fmt.Errorf("fail repository: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("fail repository rows: %w", err)
		}
		if affected == 0 {
			return ErrInvalidState
		}
		if reason != "" {
			if _, err := tx.ExecContext(ctx, `
                                INSERT INTO audit_log (action, detail, created_at)
                                VALUES ('repository_failed', ?, ?)`,
				fmt.Sprintf("repository %d: %s", id, reason), time.Now().UTC()); err != nil {
				return fmt.Errorf("audit repository failure: %w", err)
			}
		}
		return nil
	})
}

// ListRepositories returns the active repositories, optionally filtered by
// owner address, newest first.
func (s *Store) ListRepositories(ctx context.Context, owner string) ([]Repository, error) {
	query := `SELECT * FROM repositories WHERE is_active = 1 ORDER BY id DESC`
	args := []interface{}{}
	if owner != "" {
		query = `SELECT * FROM repositories WHERE is_active = 1 AND owner_address = ? ORDER BY id DESC`
		args = append(args, owner)
	}
	var rows []repositoryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	repos := make([]Repository, 0, len(rows))
	for _, row := range rows {
		repos = append(repos, row.toRepository())
	}
	return repos, nil
}

// PendingRepositories returns active rows still awaiting ledger confirmation.
func (s *Store) PendingRepositories(ctx context.Context) ([]Repository, error) {
	var rows []repositoryRow
	err := s.db.SelectContext(ctx, &rows, `
                SELECT * FROM repositories
                WHERE ledger_state = ? AND is_active = 1 ORDER BY id`, LedgerStatePending)
	if err != nil {
		return nil, fmt.Errorf("list pending repositories: %w", err)
	}
	repos := make([]Repository, 0, len(rows))
	for _, row := range rows {
		repos = append(repos, row.toRepository())
	}
	return repos, nil
}
