// File path: internal/workflow/registration.go
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/ledger"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

// runRegister performs the registration saga: fingerprint, dedup local then
// ledger, provisional local row, ledger write outside any transaction, then
// confirmation in a short transaction of its own. Content that is already
// mirrored or already on the ledger fails with ErrAlreadyRegistered; the
// job's error field is the durable record of that outcome, and no second
// active row or ledger write ever happens.
func (m *Manager) runRegister(ctx context.Context, jobID string, payload RegisterPayload) (RegisterResult, error) {
	logger := common.Logger()
	analysis, err := m.prints.Analyze(ctx, payload.URL)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("analyze repository: %w", err)
	}

	if existing, err := m.store.RepositoryByHash(ctx, analysis.ContentHash); err == nil {
		logger.Info("workflow: registration already mirrored", "job", jobID, "repository", existing.ID)
		return RegisterResult{}, fmt.Errorf("%w: repository %d", ErrAlreadyRegistered, existing.ID)
	} else if !errors.Is(err, sqlite.ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("local dedup: %w", err)
	}

	ledgerRepo, err := m.ledger.GetByHash(ctx, analysis.ContentHash)
	switch {
	case err == nil:
		// The ledger already carries this content. Mirror it locally so
		// the read surface stays consistent, then report the duplicate.
		if aerr := m.adoptLedgerRecord(ctx, jobID, analysis.NormalizedURL, ledgerRepo); aerr != nil {
			return RegisterResult{}, aerr
		}
		return RegisterResult{}, fmt.Errorf("%w: ledger record %d", ErrAlreadyRegistered, ledgerRepo.ID)
	case errors.Is(err, ledger.ErrNotFound):
		// Fresh registration.
	default:
		return RegisterResult{}, fmt.Errorf("ledger dedup: %w", err)
	}

	repo, err := m.store.InsertRepository(ctx, sqlite.NewRepository{
		OwnerAddress: payload.OwnerAddress,
		SourceURL:    analysis.NormalizedURL,
		ContentHash:  analysis.ContentHash,
		Fingerprint:  analysis.Digest,
		KeyFeatures:  analysis.KeyFeatures,
		LicenseType:  payload.LicenseType,
		Metadata:     analysis.Metadata,
	})
	if errors.Is(err, sqlite.ErrDuplicateHash) {
		// A concurrent registration won the unique index; defer to it.
		return RegisterResult{}, fmt.Errorf("%w: concurrent registration", ErrAlreadyRegistered)
	}
	if err != nil {
		return RegisterResult{}, fmt.Errorf("persist provisional registration: %w", err)
	}
	m.store.AppendAudit(ctx, jobID, "registration_provisional", analysis.NormalizedURL)

	ledgerID, err := m.ledger.Register(ctx, ledger.RegisterRequest{
		OwnerAddress: payload.OwnerAddress,
		SourceURL:    analysis.NormalizedURL,
		ContentHash:  analysis.ContentHash,
		Fingerprint:  analysis.Digest,
		KeyFeatures:  analysis.KeyFeatures,
		LicenseType:  payload.LicenseType,
	})
	switch {
	case err == nil:
		if cerr := m.store.ConfirmRepository(ctx, repo.ID, ledgerID); cerr != nil {
			return RegisterResult{}, fmt.Errorf("confirm registration: %w", cerr)
		}
		m.store.AppendAudit(ctx, jobID, "registration_confirmed", fmt.Sprintf("ledger id %d", ledgerID))
		logger.Info("workflow: repository registered", "job", jobID,
			"repository", repo.ID, "ledger_id", ledgerID)
		return RegisterResult{
			RepositoryID: repo.ID,
			LedgerID:     &ledgerID,
			ContentHash:  analysis.ContentHash,
			Status:       RegisterStatusRegistered,
		}, nil
	case errors.Is(err, ledger.ErrRejected):
		if ferr := m.store.MarkRepositoryFailed(ctx, repo.ID, err.Error()); ferr != nil {
			logger.Error("workflow: mark registration failed", "repository", repo.ID, "error", ferr)
		}
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrLedgerRejected, err)
	case errors.Is(err, ledger.ErrUnconfirmed), errors.Is(err, ledger.ErrUnavailable):
		// The write may still land. The row stays provisional; the
		// reconciler promotes or fails it once the ledger can be read.
		logger.Warn("workflow: registration unconfirmed, left for reconciler",
			"job", jobID, "repository", repo.ID, "error", err)
		return RegisterResult{}, fmt.Errorf("registration unconfirmed, retry pending: %w", err)
	default:
		return RegisterResult{}, fmt.Errorf("ledger register: %w", err)
	}
}

// adoptLedgerRecord mirrors a registration that exists on the ledger but not
// locally, confirmed with the ledger id it already carries.
func (m *Manager) adoptLedgerRecord(ctx context.Context, jobID string, sourceURL string, ledgerRepo ledger.Repository) error {
	repo, err := m.store.InsertRepository(ctx, sqlite.NewRepository{
		OwnerAddress: ledgerRepo.OwnerAddress,
		SourceURL:    sourceURL,
		ContentHash:  ledgerRepo.ContentHash,
		Fingerprint:  ledgerRepo.Fingerprint,
		KeyFeatures:  ledgerRepo.KeyFeatures,
		LicenseType:  ledgerRepo.LicenseType,
	})
	if errors.Is(err, sqlite.ErrDuplicateHash) {
		existing, lerr := m.store.RepositoryByHash(ctx, ledgerRepo.ContentHash)
		if lerr != nil {
			return fmt.Errorf("mirror ledger record: %w", lerr)
		}
		repo = existing
	} else if err != nil {
		return fmt.Errorf("mirror ledger record: %w", err)
	}
	if repo.LedgerID == nil {
		if err := m.store.ConfirmRepository(ctx, repo.ID, ledgerRepo.ID); err != nil && !errors.Is(err, sqlite.ErrInvalidState) {
			return fmt.Errorf("confirm mirrored record: %w", err)
		}
	}
	m.store.AppendAudit(ctx, jobID, "registration_adopted", fmt.Sprintf("ledger id %d", ledgerRepo.ID))
	return nil
}
