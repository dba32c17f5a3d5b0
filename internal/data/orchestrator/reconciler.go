// File path: internal/data/orchestrator/reconciler.go
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/ledger"
)

// reconcileLoop re-polls provisional rows whose ledger write went
// unconfirmed. A row is promoted once its record is observed on the ledger
// and marked failed-ledger after the retry budget is exhausted without one.
func (o *Orchestrator) reconcileLoop(ctx context.Context) {
	defer close(o.syncDone)
	attempts := make(map[string]int)
	ticker := time.NewTicker(o.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, o.cfg.SyncTimeout)
			o.reconcileRepositories(syncCtx, attempts)
			o.reconcileViolations(syncCtx, attempts)
			cancel()
		}
	}
}

func (o *Orchestrator) reconcileRepositories(ctx context.Context, attempts map[string]int) {
	logger := common.Logger()
	pending, err := o.store.PendingRepositories(ctx)
	if err != nil {
		logger.Warn("reconciler: list pending repositories failed", "error", err)
		return
	}
	for _, repo := range pending {
		key := "repo:" + repo.ContentHash
		record, err := o.ledger.GetByHash(ctx, repo.ContentHash)
		switch {
		case err == nil:
			if cerr := o.store.ConfirmRepository(ctx, repo.ID, record.ID); cerr != nil {
				logger.Warn("reconciler: confirm repository failed",
					"repository", repo.ID, "error", cerr)
				continue
			}
			delete(attempts, key)
			o.store.AppendAudit(ctx, "", "registration_reconciled",
				repo.SourceURL)
			logger.Info("reconciler: repository confirmed",
				"repository", repo.ID, "ledger_id", record.ID)
		case errors.Is(err, ledger.ErrNotFound):
			attempts[key]++
			if attempts[key] >= o.cfg.MaxSyncRetries {
				if ferr := o.store.MarkRepositoryFailed(ctx, repo.ID, "ledger write never landed"); ferr != nil {
					logger.Warn("reconciler: mark repository failed",
						"repository", repo.ID, "error", ferr)
					continue
				}
				delete(attempts, key)
				logger.Warn("reconciler: repository registration abandoned",
					"repository", repo.ID, "retries", o.cfg.MaxSyncRetries)
			}
		default:
			// Ledger unreachable; leave the attempt count alone and retry
			// on the next tick.
			logger.Warn("reconciler: repository lookup failed",
				"repository", repo.ID, "error", err)
		}
	}
}

func (o *Orchestrator) reconcileViolations(ctx context.Context, attempts map[string]int) {
	logger := common.Logger()
	pending, err := o.store.PendingViolations(ctx)
	if err != nil {
		logger.Warn("reconciler: list pending violations failed", "error", err)
		return
	}
	for _, violation := range pending {
		key := "violation:" + violation.EvidenceHash
		repo, err := o.store.RepositoryByID(ctx, violation.OriginalRepoID)
		if err != nil || repo.LedgerID == nil {
			continue
		}
		records, err := o.ledger.RepositoryViolations(ctx, *repo.LedgerID)
		if err != nil {
			logger.Warn("reconciler: violation lookup failed",
				"violation", violation.ID, "error", err)
			continue
		}
		matched := false
		for _, record := range records {
			if record.EvidenceHash == violation.EvidenceHash {
				if cerr := o.store.ConfirmViolation(ctx, violation.ID, record.ID); cerr != nil {
					logger.Warn("reconciler: confirm violation failed",
						"violation", violation.ID, "error", cerr)
					break
				}
				delete(attempts, key)
				o.store.AppendAudit(ctx, "", "violation_reconciled", violation.ViolatingURL)
				logger.Info("reconciler: violation confirmed",
					"violation", violation.ID, "ledger_id", record.ID)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		attempts[key]++
		if attempts[key] >= o.cfg.MaxSyncRetries {
			if ferr := o.store.MarkViolationFailed(ctx, violation.ID, "ledger write never landed"); ferr != nil {
				logger.Warn("reconciler: mark violation failed",
					"violation", violation.ID, "error", ferr)
				continue
			}
			delete(attempts, key)
			logger.Warn("reconciler: violation report abandoned",
				"violation", violation.ID, "retries", o.cfg.MaxSyncRetries)
		}
	}
}
