// File path: internal/sqlite/audit.go
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// AppendAudit records a lifecycle action in the audit trail.
func (s *Store) AppendAudit(ctx context.Context, jobID, action, detail string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
                        INSERT INTO audit_log (job_id, action, detail, created_at)
                        VALUES (?, ?, ?, ?)`,
			jobID, action, detail, time.Now().UTC()); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		return nil
	})
}

// AuditEntries returns the most recent audit entries, newest first.
func (s *Store) AuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
                SELECT * FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}
