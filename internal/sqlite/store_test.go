// File path: internal/sqlite/store_test.go
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	store := testStore(t)
	var mode string
	if err := store.DB().Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
	var foreignKeys int
	if err := store.DB().Get(&foreignKeys, "PRAGMA foreign_keys"); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Fatalf("foreign_keys = %d, want 1", foreignKeys)
	}
}

func insertTestRepository(t *testing.T, store *Store, hash string) Repository {
	t.Helper()
	repo, err := store.InsertRepository(context.Background(), NewRepository{
		OwnerAddress: "0xowner",
		SourceURL:    "https://github.com/owner/repo",
		ContentHash:  hash,
		Fingerprint:  "digest-" + hash,
		KeyFeatures:  []string{"Language: Go"},
		LicenseType:  "MIT",
	})
	if err != nil {
		t.Fatalf("InsertRepository: %v", err)
	}
	return repo
}

func TestRepositoryUniqueHashAmongActive(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	repo := insertTestRepository(t, store, "hash-1")
	if repo.LedgerState != LedgerStatePending {
		t.Fatalf("new repository state = %q, want pending-ledger", repo.LedgerState)
	}

	_, err := store.InsertRepository(ctx, NewRepository{
		OwnerAddress: "0xother",
		SourceURL:    "https://github.com/owner/repo",
		ContentHash:  "hash-1",
	})
	if !errors.Is(err, ErrDuplicateHash) {
		t.Fatalf("duplicate insert error = %v, want ErrDuplicateHash", err)
	}

	// A failed (inactive) row frees the hash for a fresh registration.
	if err := store.MarkRepositoryFailed(ctx, repo.ID, "rejected"); err != nil {
		t.Fatalf("MarkRepositoryFailed: %v", err)
	}
	if _, err := store.InsertRepository(ctx, NewRepository{
		OwnerAddress: "0xowner",
		SourceURL:    "https://github.com/owner/repo",
		ContentHash:  "hash-1",
	}); err != nil {
		t.Fatalf("insert after failure: %v", err)
	}
}

func TestConfirmRepositoryWritesLedgerIDOnce(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	repo := insertTestRepository(t, store, "hash-2")

	if err := store.ConfirmRepository(ctx, repo.ID, 77); err != nil {
		t.Fatalf("ConfirmRepository: %v", err)
	}
	confirmed, err := store.RepositoryByID(ctx, repo.ID)
	if err != nil {
		t.Fatalf("RepositoryByID: %v", err)
	}
	if confirmed.LedgerID == nil || *confirmed.LedgerID != 77 {
		t.Fatalf("ledger id = %v, want 77", confirmed.LedgerID)
	}
	if confirmed.LedgerState != LedgerStateConfirmed {
		t.Fatalf("state = %q, want confirmed", confirmed.LedgerState)
	}

	if err := store.ConfirmRepository(ctx, repo.ID, 78); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second confirm error = %v, want ErrInvalidState", err)
	}
	if err := store.MarkRepositoryFailed(ctx, repo.ID, "late"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("fail after confirm error = %v, want ErrInvalidState", err)
	}
}

func TestPendingRepositoriesExcludesConfirmed(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	first := insertTestRepository(t, store, "hash-3")
	second := insertTestRepository(t, store, "hash-4")
	if err := store.ConfirmRepository(ctx, first.ID, 1); err != nil {
		t.Fatalf("ConfirmRepository: %v", err)
	}
	pending, err := store.PendingRepositories(ctx)
	if err != nil {
		t.Fatalf("PendingRepositories: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("pending = %+v, want only repository %d", pending, second.ID)
	}
}

func TestViolationLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	repo := insertTestRepository(t, store, "hash-5")
	if err := store.ConfirmRepository(ctx, repo.ID, 5); err != nil {
		t.Fatalf("ConfirmRepository: %v", err)
	}

	violation, err := store.InsertViolation(ctx, NewViolation{
		OriginalRepoID:  repo.ID,
		ReporterAddress: "0xagent",
		ViolatingURL:    "https://github.com/copier/repo",
		EvidenceHash:    "evidence-1",
		SimilarityScore: 85,
	})
	if err != nil {
		t.Fatalf("InsertViolation: %v", err)
	}
	if violation.Status != "pending" || violation.LedgerState != LedgerStatePending {
		t.Fatalf("new violation = %+v", violation)
	}

	// Status updates require a confirmed ledger id.
	if err := store.UpdateViolationStatus(ctx, violation.ID, "verified"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("status before confirm error = %v, want ErrInvalidState", err)
	}
	if err := store.ConfirmViolation(ctx, violation.ID, 11); err != nil {
		t.Fatalf("ConfirmViolation: %v", err)
	}
	if err := store.UpdateViolationStatus(ctx, violation.ID, "verified"); err != nil {
		t.Fatalf("UpdateViolationStatus: %v", err)
	}
	if err := store.AttachNoticeReference(ctx, violation.ID, "ipfs://abc"); err != nil {
		t.Fatalf("AttachNoticeReference: %v", err)
	}

	updated, err := store.ViolationByID(ctx, violation.ID)
	if err != nil {
		t.Fatalf("ViolationByID: %v", err)
	}
	if updated.Status != "verified" || updated.NoticeReference != "ipfs://abc" {
		t.Fatalf("updated violation = %+v", updated)
	}
}

func TestJobClaimIsCompareAndSet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if _, err := store.InsertJob(ctx, "job-1", "register", json.RawMessage(`{"url":"x"}`)); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if err := store.MarkJobRunning(ctx, "job-1"); err != nil {
		t.Fatalf("MarkJobRunning: %v", err)
	}
	if err := store.MarkJobRunning(ctx, "job-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second claim error = %v, want ErrInvalidState", err)
	}
}

func TestTerminalJobsAreFrozen(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if _, err := store.InsertJob(ctx, "job-2", "scan", nil); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if err := store.MarkJobRunning(ctx, "job-2"); err != nil {
		t.Fatalf("MarkJobRunning: %v", err)
	}
	if err := store.CompleteJob(ctx, "job-2", json.RawMessage(`{"matches":[]}`)); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if err := store.FailJob(ctx, "job-2", "late failure"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("fail after complete error = %v, want ErrInvalidState", err)
	}
	if err := store.CancelJob(ctx, "job-2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel after complete error = %v, want ErrInvalidState", err)
	}
	job, err := store.GetJob(ctx, "job-2")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != JobStatusCompleted || job.Error != "" || len(job.Result) == 0 {
		t.Fatalf("terminal job = %+v", job)
	}
}

func TestCancelOnlyWhilePending(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if _, err := store.InsertJob(ctx, "job-3", "audit", nil); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if err := store.CancelJob(ctx, "job-3"); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	job, err := store.GetJob(ctx, "job-3")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != JobStatusFailed || job.Error != "canceled" {
		t.Fatalf("canceled job = %+v", job)
	}

	if _, err := store.InsertJob(ctx, "job-4", "audit", nil); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if err := store.MarkJobRunning(ctx, "job-4"); err != nil {
		t.Fatalf("MarkJobRunning: %v", err)
	}
	if err := store.CancelJob(ctx, "job-4"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel running error = %v, want ErrInvalidState", err)
	}
	if err := store.CancelJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel missing error = %v, want ErrNotFound", err)
	}
}

func TestListJobsFilters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	for _, spec := range []struct{ id, kind string }{
		{"job-a", "register"},
		{"job-b", "scan"},
		{"job-c", "register"},
	} {
		if _, err := store.InsertJob(ctx, spec.id, spec.kind, nil); err != nil {
			t.Fatalf("InsertJob(%s): %v", spec.id, err)
		}
	}
	if err := store.MarkJobRunning(ctx, "job-b"); err != nil {
		t.Fatalf("MarkJobRunning: %v", err)
	}

	registers, err := store.ListJobs(ctx, JobFilter{Type: "register"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(registers) != 2 {
		t.Fatalf("register jobs = %d, want 2", len(registers))
	}
	running, err := store.ListJobs(ctx, JobFilter{Status: JobStatusRunning})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(running) != 1 || running[0].ID != "job-b" {
		t.Fatalf("running jobs = %+v", running)
	}
	limited, err := store.ListJobs(ctx, JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited jobs = %d, want 1", len(limited))
	}
}

func TestAuditTrail(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.AppendAudit(ctx, "job-x", "job_completed", "register"); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	entries, err := store.AuditEntries(ctx, 10)
	if err != nil {
		t.Fatalf("AuditEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "job_completed" || entries[0].JobID != "job-x" {
		t.Fatalf("entries = %+v", entries)
	}
}
