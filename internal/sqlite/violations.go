// File path: internal/sqlite/violations.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// NewViolation is the payload for a provisional violation row.
type NewViolation struct {
	OriginalRepoID  int64
	ReporterAddress string
	ViolatingURL    string
	EvidenceHash    string
	SimilarityScore int
	Metadata        map[string]string
}

// InsertViolation creates a provisional violation row in pending-ledger state
// with status pending.
func (s *Store) InsertViolation(ctx context.Context, v NewViolation) (Violation, error) {
	now := time.Now().UTC()
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        INSERT INTO violations
                                (original_repo_id, reporter_address, violating_url,
                                 evidence_hash, similarity_score, status, ledger_state,
                                 metadata, reported_at, updated_at)
                        VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?)`,
			v.OriginalRepoID, v.ReporterAddress, v.ViolatingURL,
			v.EvidenceHash, v.SimilarityScore, LedgerStatePending,
			encodeStringMap(v.Metadata), now, now)
		if err != nil {
			return fmt.Errorf("insert violation: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("violation insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return Violation{}, err
	}
	return s.ViolationByID(ctx, id)
}

// ViolationByID fetches a single violation row.
func (s *Store) ViolationByID(ctx context.Context, id int64) (Violation, error) {
	var row violationRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM violations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Violation{}, ErrNotFound
	}
	if err != nil {
		return Violation{}, fmt.Errorf("select violation: %w", err)
	}
	return row.toViolation(), nil
}

// ViolationsForRepository returns the violations recorded against a
// repository, newest first.
func (s *Store) ViolationsForRepository(ctx context.Context, repoID int64) ([]Violation, error) {
	var rows []violationRow
	err := s.db.SelectContext(ctx, &rows, `
                SELECT * FROM violations WHERE original_repo_id = ? ORDER BY id DESC`, repoID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	violations := make([]Violation, 0, len(rows))
	for _, row := range rows {
		violations = append(violations, row.toViolation())
	}
	return violations, nil
}

// ConfirmViolation records the ledger id for a provisional violation row.
func (s *Store) ConfirmViolation(ctx context.Context, id, ledgerID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        UPDATE violations
                        SET ledger_id = ?, ledger_state = ?, updated_at = ?
                        WHERE id = ? AND ledger_id IS NULL AND ledger_state = ?`,
			ledgerID, LedgerStateConfirmed, time.Now().UTC(), id, LedgerStatePending)
		if err != nil {
			return fmt.Errorf("confirm violation: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("confirm violation rows: %w", err)
		}
		if affected == 0 {
			return ErrInvalidState
		}
		return nil
	})
}

// MarkViolationFailed moves a provisional violation to failed-ledger.
func (s *Store) MarkViolationFailed(ctx context.Context, id int64, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        UPDATE violations
                        SET ledger_state = ?, updated_at = ?
                        WHERE id = ? AND ledger_id IS NULL AND ledger_state = ?`,
			LedgerStateFailed, time.Now().UTC(), id, LedgerStatePending)
		if err != nil {
			return fmt.Errorf("fail violation: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("fail violation rows: %w", err)
		}
		if affected == 0 {
			return ErrInvalidState
		}
		if reason != "" {
			if _, err := tx.ExecContext(ctx, `
                                INSERT INTO audit_log (action, detail, created_at)
                                VALUES ('violation_failed', ?, ?)`,
				fmt.Sprintf("violation %d: %s", id, reason), time.Now().UTC()); err != nil {
				return fmt.Errorf("audit violation failure: %w", err)
			}
		}
		return nil
	})
}

// UpdateViolationStatus applies a status transition to a ledger-confirmed
// violation. The caller is responsible for validating the transition and for
// confirming the ledger write first.
func (s *Store) UpdateViolationStatus(ctx context.Context, id int64, status string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        UPDATE violations
                        SET status = ?, updated_at = ?
                        WHERE id = ? AND ledger_id IS NOT NULL`,
			status, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("update violation status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update violation status rows: %w", err)
		}
		if affected == 0 {
			return ErrInvalidState
		}
		return nil
	})
}

// AttachNoticeReference stores the storage locator for the rendered notice.
func (s *Store) AttachNoticeReference(ctx context.Context, id int64, reference string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
                        UPDATE violations SET notice_reference = ?, updated_at = ? WHERE id = ?`,
			reference, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("attach notice reference: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("attach notice reference rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// PendingViolations returns violation rows still awaiting ledger confirmation.
func (s *Store) PendingViolations(ctx context.Context) ([]Violation, error) {
	var rows []violationRow
	err := s.db.SelectContext(ctx, &rows, `
                SELECT * FROM violations WHERE ledger_state = ? ORDER BY id`, LedgerStatePending)
	if err != nil {
		return nil, fmt.Errorf("list pending violations: %w", err)
	}
	violations := make([]Violation, 0, len(rows))
	for _, row := range rows {
		violations = append(violations, row.toViolation())
	}
	return violations, nil
}
