// File path: internal/workflow/violation.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/evidence"
	"github.com/DataShieldAI/repoguard/internal/fingerprint"
	"github.com/DataShieldAI/repoguard/internal/ledger"
	"github.com/DataShieldAI/repoguard/internal/notice"
	"github.com/DataShieldAI/repoguard/internal/similarity"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

// runScan enumerates hosting search candidates for a registered repository,
// scores each, and yields only matches at or above the reporting threshold.
// One bounded pass; candidates below the threshold are never surfaced.
func (m *Manager) runScan(ctx context.Context, payload ScanPayload) (ScanResult, error) {
	repo, err := m.store.RepositoryByID(ctx, payload.RepositoryID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return ScanResult{}, fmt.Errorf("%w: repository %d", ErrNotFound, payload.RepositoryID)
	}
	if err != nil {
		return ScanResult{}, err
	}
	if m.hosting == nil {
		return ScanResult{}, errors.New("no hosting client configured")
	}

	_, _, name, err := fingerprint.NormalizeURL(repo.SourceURL)
	if err != nil {
		return ScanResult{}, fmt.Errorf("normalize registered url: %w", err)
	}
	query := name
	if language, ok := repo.Metadata["language"]; ok && language != "" {
		query += " language:" + language
	}
	candidates, err := m.hosting.SearchRepositories(ctx, query, m.scanLimit)
	if err != nil {
		return ScanResult{}, fmt.Errorf("search candidates: %w", err)
	}

	original := similarity.Subject{
		URL:         repo.SourceURL,
		Name:        name,
		Language:    repo.Metadata["language"],
		Description: repo.Metadata["description"],
		Features:    repo.KeyFeatures,
	}
	result := ScanResult{RepositoryID: repo.ID}
	for _, candidate := range candidates {
		normalized, _, candName, err := fingerprint.NormalizeURL(candidate.URL)
		if err != nil {
			continue
		}
		if strings.EqualFold(normalized, repo.SourceURL) {
			continue
		}
		result.Examined++
		scored, err := m.scorer.Score(ctx, original, similarity.Subject{
			URL:         normalized,
			Name:        candName,
			Language:    candidate.Language,
			Description: candidate.Description,
		})
		if err != nil {
			common.Logger().Warn("workflow: candidate scoring failed",
				"candidate", normalized, "error", err)
			continue
		}
		if scored.Score >= m.minScore {
			result.Matches = append(result.Matches, Match{
				URL:      normalized,
				FullName: candidate.FullName,
				Score:    scored.Score,
				Evidence: scored.Evidence,
			})
		}
	}
	return result, nil
}

// runReport performs the violation report saga: score the candidate if the
// payload did not, gate on the threshold, archive the evidence bundle, write
// the provisional local row, submit to the ledger outside any transaction,
// and confirm.
func (m *Manager) runReport(ctx context.Context, jobID string, payload ReportPayload) (ReportResult, error) {
	logger := common.Logger()
	repo, err := m.store.RepositoryByID(ctx, payload.RepositoryID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return ReportResult{}, fmt.Errorf("%w: repository %d", ErrNotFound, payload.RepositoryID)
	}
	if err != nil {
		return ReportResult{}, err
	}
	if repo.LedgerID == nil {
		return ReportResult{}, fmt.Errorf("%w: repository %d has no confirmed ledger record", ErrInvalidState, repo.ID)
	}
	if !repo.IsActive {
		return ReportResult{}, fmt.Errorf("%w: repository %d is inactive", ErrInvalidState, repo.ID)
	}

	normalizedURL, _, candName, err := fingerprint.NormalizeURL(payload.ViolatingURL)
	if err != nil {
		return ReportResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	score := payload.SimilarityScore
	evidenceSummary := "score supplied by reporter"
	matched := []string{}
	if score == 0 {
		candidate := similarity.Subject{URL: normalizedURL, Name: candName}
		if analysis, aerr := m.prints.Analyze(ctx, normalizedURL); aerr == nil {
			candidate.Language = analysis.Metadata["language"]
			candidate.Description = analysis.Metadata["description"]
			candidate.Features = analysis.KeyFeatures
		}
		scored, serr := m.scorer.Score(ctx, similarity.Subject{
			URL:         repo.SourceURL,
			Name:        repoName(repo.SourceURL),
			Language:    repo.Metadata["language"],
			Description: repo.Metadata["description"],
			Features:    repo.KeyFeatures,
		}, candidate)
		if serr != nil {
			return ReportResult{}, fmt.Errorf("score candidate: %w", serr)
		}
		score = scored.Score
		evidenceSummary = scored.Evidence
	}
	if score < m.minScore {
		return ReportResult{}, fmt.Errorf("similarity score %d below reporting threshold %d", score, m.minScore)
	}
	for _, feature := range repo.KeyFeatures {
		if strings.Contains(strings.ToLower(evidenceSummary), strings.ToLower(feature)) {
			matched = append(matched, feature)
		}
	}

	bundle := evidence.Bundle{
		OriginalURL:     repo.SourceURL,
		ViolatingURL:    normalizedURL,
		SimilarityScore: score,
		MatchedFeatures: matched,
		Evidence:        evidenceSummary,
		ReportedAt:      time.Now().UTC(),
	}
	var evidenceHash string
	if m.archive != nil {
		evidenceHash, err = m.archive.Append(bundle)
	} else {
		evidenceHash, err = bundle.Hash()
	}
	if err != nil {
		return ReportResult{}, fmt.Errorf("archive evidence: %w", err)
	}

	violation, err := m.store.InsertViolation(ctx, sqlite.NewViolation{
		OriginalRepoID:  repo.ID,
		ReporterAddress: m.agentAddress,
		ViolatingURL:    normalizedURL,
		EvidenceHash:    evidenceHash,
		SimilarityScore: score,
	})
	if err != nil {
		return ReportResult{}, fmt.Errorf("persist provisional violation: %w", err)
	}
	m.store.AppendAudit(ctx, jobID, "violation_provisional", normalizedURL)

	ledgerID, err := m.ledger.ReportViolation(ctx, ledger.ReportRequest{
		OriginalRepoID:  *repo.LedgerID,
		ReporterAddress: m.agentAddress,
		ViolatingURL:    normalizedURL,
		EvidenceHash:    evidenceHash,
		SimilarityScore: score,
	})
	switch {
	case err == nil:
		if cerr := m.store.ConfirmViolation(ctx, violation.ID, ledgerID); cerr != nil {
			return ReportResult{}, fmt.Errorf("confirm violation: %w", cerr)
		}
		m.store.AppendAudit(ctx, jobID, "violation_confirmed", fmt.Sprintf("ledger id %d", ledgerID))
		logger.Info("workflow: violation reported", "job", jobID,
			"violation", violation.ID, "ledger_id", ledgerID, "score", score)
		return ReportResult{
			ViolationID:  violation.ID,
			LedgerID:     &ledgerID,
			EvidenceHash: evidenceHash,
			Score:        score,
			Status:       ledger.StatusPending.String(),
		}, nil
	case errors.Is(err, ledger.ErrRejected):
		if ferr := m.store.MarkViolationFailed(ctx, violation.ID, err.Error()); ferr != nil {
			logger.Error("workflow: mark violation failed", "violation", violation.ID, "error", ferr)
		}
		return ReportResult{}, fmt.Errorf("%w: %v", ErrLedgerRejected, err)
	case errors.Is(err, ledger.ErrUnconfirmed), errors.Is(err, ledger.ErrUnavailable):
		logger.Warn("workflow: violation report unconfirmed, left for reconciler",
			"job", jobID, "violation", violation.ID, "error", err)
		return ReportResult{}, fmt.Errorf("violation report unconfirmed, retry pending: %w", err)
	default:
		return ReportResult{}, fmt.Errorf("ledger report: %w", err)
	}
}

// UpdateStatus applies a violation status transition: state machine checked
// locally, ledger write first, local mirror second. The notice is rendered
// and hosted on the paths that need one; a storage failure never blocks the
// transition.
func (m *Manager) UpdateStatus(ctx context.Context, violationID int64, statusName, reference, callerAddress string) (sqlite.Violation, error) {
	violation, err := m.store.ViolationByID(ctx, violationID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return sqlite.Violation{}, fmt.Errorf("%w: violation %d", ErrNotFound, violationID)
	}
	if err != nil {
		return sqlite.Violation{}, err
	}
	if violation.LedgerID == nil {
		return sqlite.Violation{}, fmt.Errorf("%w: violation %d has no confirmed ledger record", ErrInvalidState, violationID)
	}
	current, err := ledger.ParseStatus(violation.Status)
	if err != nil {
		return sqlite.Violation{}, fmt.Errorf("current status: %w", err)
	}
	next, err := ledger.ParseStatus(statusName)
	if err != nil {
		return sqlite.Violation{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !current.CanTransition(next) {
		return sqlite.Violation{}, fmt.Errorf("%w: %s -> %s not allowed", ErrInvalidState, current, next)
	}

	if err := m.ledger.UpdateStatus(ctx, *violation.LedgerID, next, reference, callerAddress); err != nil {
		if errors.Is(err, ledger.ErrRejected) {
			return sqlite.Violation{}, fmt.Errorf("%w: %v", ErrLedgerRejected, err)
		}
		return sqlite.Violation{}, fmt.Errorf("ledger status update: %w", err)
	}
	if err := m.store.UpdateViolationStatus(ctx, violationID, next.String()); err != nil {
		return sqlite.Violation{}, fmt.Errorf("mirror status update: %w", err)
	}
	m.store.AppendAudit(ctx, "", "violation_status",
		fmt.Sprintf("violation %d: %s -> %s", violationID, current, next))

	needsNotice := (current == ledger.StatusVerified && next == ledger.StatusResolved) ||
		(current == ledger.StatusPending && next == ledger.StatusDisputed)
	if needsNotice && violation.NoticeReference == "" {
		m.hostNotice(ctx, violation)
	}
	return m.store.ViolationByID(ctx, violationID)
}

// hostNotice renders the takedown notice and attaches its storage locator.
// Failures are logged and tolerated; the reference can be attached later.
func (m *Manager) hostNotice(ctx context.Context, violation sqlite.Violation) {
	logger := common.Logger()
	repo, err := m.store.RepositoryByID(ctx, violation.OriginalRepoID)
	if err != nil {
		logger.Warn("workflow: notice skipped, original missing", "violation", violation.ID, "error", err)
		return
	}
	rendered, err := notice.Render(notice.Details{
		OriginalURL:     repo.SourceURL,
		ViolatingURL:    violation.ViolatingURL,
		OwnerAddress:    repo.OwnerAddress,
		SimilarityScore: violation.SimilarityScore,
		EvidenceHash:    violation.EvidenceHash,
		EvidenceSummary: violation.Metadata["evidence"],
		ReportedAt:      violation.ReportedAt,
	})
	if err != nil {
		logger.Warn("workflow: notice rendering failed", "violation", violation.ID, "error", err)
		return
	}
	if m.storage == nil {
		logger.Info("workflow: no storage configured, notice not hosted", "violation", violation.ID)
		return
	}
	locator, err := m.storage.Put(ctx, fmt.Sprintf("notice-%d.txt", violation.ID), []byte(rendered))
	if err != nil {
		logger.Warn("workflow: notice hosting failed", "violation", violation.ID, "error", err)
		return
	}
	if err := m.store.AttachNoticeReference(ctx, violation.ID, locator); err != nil {
		logger.Warn("workflow: attach notice reference failed", "violation", violation.ID, "error", err)
		return
	}
	logger.Info("workflow: notice hosted", "violation", violation.ID, "reference", locator)
}

func repoName(sourceURL string) string {
	_, _, name, err := fingerprint.NormalizeURL(sourceURL)
	if err != nil {
		return sourceURL
	}
	return name
}
