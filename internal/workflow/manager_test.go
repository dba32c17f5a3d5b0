// File path: internal/workflow/manager_test.go
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DataShieldAI/repoguard/internal/evidence"
	"github.com/DataShieldAI/repoguard/internal/fingerprint"
	"github.com/DataShieldAI/repoguard/internal/github"
	"github.com/DataShieldAI/repoguard/internal/ledger"
	"github.com/DataShieldAI/repoguard/internal/similarity"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

type fakeLedger struct {
	mu         sync.Mutex
	nextID     int64
	repos      map[string]ledger.Repository
	violations map[int64][]ledger.Violation

	registerErr  error
	reportErr    error
	updateErr    error
	registerHits int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		repos:      make(map[string]ledger.Repository),
		violations: make(map[int64][]ledger.Violation),
	}
}

func (f *fakeLedger) Register(ctx context.Context, req ledger.RegisterRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerHits++
	if f.registerErr != nil {
		return 0, f.registerErr
	}
	if _, ok := f.repos[req.ContentHash]; ok {
		return 0, fmt.Errorf("%w: duplicate hash", ledger.ErrRejected)
	}
	f.nextID++
	f.repos[req.ContentHash] = ledger.Repository{
		ID:           f.nextID,
		OwnerAddress: req.OwnerAddress,
		SourceURL:    req.SourceURL,
		ContentHash:  req.ContentHash,
		Fingerprint:  req.Fingerprint,
		KeyFeatures:  req.KeyFeatures,
		LicenseType:  req.LicenseType,
		IsActive:     true,
	}
	return f.nextID, nil
}

func (f *fakeLedger) GetByHash(ctx context.Context, contentHash string) (ledger.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repo, ok := f.repos[contentHash]; ok {
		return repo, nil
	}
	return ledger.Repository{}, ledger.ErrNotFound
}

func (f *fakeLedger) GetByLedgerID(ctx context.Context, id int64) (ledger.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, repo := range f.repos {
		if repo.ID == id {
			return repo, nil
		}
	}
	return ledger.Repository{}, ledger.ErrNotFound
}

func (f *fakeLedger) ReportViolation(ctx context.Context, req ledger.ReportRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reportErr != nil {
		return 0, f.reportErr
	}
	if req.SimilarityScore < ledger.MinReportScore || req.SimilarityScore > 100 {
		return 0, fmt.Errorf("%w: score %d out of bounds", ledger.ErrRejected, req.SimilarityScore)
	}
	f.nextID++
	f.violations[req.OriginalRepoID] = append(f.violations[req.OriginalRepoID], ledger.Violation{
		ID:              f.nextID,
		OriginalRepoID:  req.OriginalRepoID,
		ReporterAddress: req.ReporterAddress,
		ViolatingURL:    req.ViolatingURL,
		EvidenceHash:    req.EvidenceHash,
		SimilarityScore: req.SimilarityScore,
		Status:          ledger.StatusPending,
	})
	return f.nextID, nil
}

func (f *fakeLedger) UpdateStatus(ctx context.Context, violationID int64, status ledger.Status, reference, callerAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for repoID, list := range f.violations {
		for i, violation := range list {
			if violation.ID == violationID {
				f.violations[repoID][i].Status = status
				return nil
			}
		}
	}
	return ledger.ErrNotFound
}

func (f *fakeLedger) UserRepositories(ctx context.Context, ownerAddress string) ([]ledger.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var repos []ledger.Repository
	for _, repo := range f.repos {
		if repo.OwnerAddress == ownerAddress {
			repos = append(repos, repo)
		}
	}
	return repos, nil
}

func (f *fakeLedger) RepositoryViolations(ctx context.Context, repoID int64) ([]ledger.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Violation(nil), f.violations[repoID]...), nil
}

type fakeHosting struct {
	candidates []github.Candidate
}

func (f *fakeHosting) Metadata(ctx context.Context, owner, name string) (*github.Metadata, error) {
	return &github.Metadata{
		Owner:       owner,
		Name:        name,
		FullName:    owner + "/" + name,
		Description: "workflow engine for repository protection",
		Language:    "Go",
		Size:        1024,
		CreatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		PushedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TopFiles:    []string{"main.go", "go.mod", "README.md"},
	}, nil
}

func (f *fakeHosting) SearchRepositories(ctx context.Context, query string, limit int) ([]github.Candidate, error) {
	return f.candidates, nil
}

// fakeScorer returns a fixed score per candidate URL, defaulting to zero.
type fakeScorer struct {
	scores map[string]int
}

func (f *fakeScorer) Score(ctx context.Context, original, candidate similarity.Subject) (similarity.Result, error) {
	return similarity.Result{Score: f.scores[candidate.URL], Evidence: "fixture score"}, nil
}

type fakeStorage struct {
	puts int
}

func (f *fakeStorage) Put(ctx context.Context, name string, data []byte) (string, error) {
	f.puts++
	return "ipfs://fixture-" + name, nil
}

type managerFixture struct {
	manager *Manager
	store   *sqlite.Store
	ledger  *fakeLedger
	hosting *fakeHosting
	scorer  *fakeScorer
	storage *fakeStorage
	archive *evidence.Archive
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	archive, err := evidence.OpenArchive(filepath.Join(dir, "archive.jsonl"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	fl := newFakeLedger()
	fh := &fakeHosting{}
	fs := &fakeScorer{scores: map[string]int{}}
	fst := &fakeStorage{}
	manager, err := NewManager(Deps{
		Store:        store,
		Ledger:       fl,
		Hosting:      fh,
		Fingerprints: fingerprint.NewService(fh, nil),
		Scorer:       fs,
		Storage:      fst,
		Archive:      archive,
		AgentAddress:    "0xagent",
		MinScore:        70,
		ScanLimit:       10,
		Workers:         2,
		RequeueInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &managerFixture{
		manager: manager, store: store, ledger: fl,
		hosting: fh, scorer: fs, storage: fst, archive: archive,
	}
}

func (f *managerFixture) register(t *testing.T) RegisterResult {
	t.Helper()
	result, err := f.manager.runRegister(context.Background(), "job-test", RegisterPayload{
		URL:          "https://github.com/owner/original",
		OwnerAddress: "0xowner",
		LicenseType:  "MIT",
	})
	if err != nil {
		t.Fatalf("runRegister: %v", err)
	}
	return result
}

func TestRegisterConfirmsLedgerWrite(t *testing.T) {
	f := newFixture(t)
	result := f.register(t)
	if result.Status != RegisterStatusRegistered {
		t.Fatalf("status = %q, want registered", result.Status)
	}
	if result.LedgerID == nil {
		t.Fatalf("missing ledger id")
	}
	repo, err := f.store.RepositoryByID(context.Background(), result.RepositoryID)
	if err != nil {
		t.Fatalf("RepositoryByID: %v", err)
	}
	if repo.LedgerState != sqlite.LedgerStateConfirmed {
		t.Fatalf("repository state = %q, want confirmed", repo.LedgerState)
	}
	if repo.SourceURL != "https://github.com/owner/original" {
		t.Fatalf("source url = %q", repo.SourceURL)
	}
}

func TestSecondRegisterFailsAlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)

	_, err := f.manager.runRegister(context.Background(), "job-test-2", RegisterPayload{
		URL:          "git@github.com:owner/original.git", // same repository, different spelling
		OwnerAddress: "0xowner",
	})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second runRegister error = %v, want ErrAlreadyRegistered", err)
	}
	if f.ledger.registerHits != 1 {
		t.Fatalf("ledger register hits = %d, want 1", f.ledger.registerHits)
	}
	// Exactly one active record, untouched by the duplicate attempt.
	repos, lerr := f.store.ListRepositories(context.Background(), "")
	if lerr != nil {
		t.Fatalf("ListRepositories: %v", lerr)
	}
	if len(repos) != 1 || repos[0].ID != first.RepositoryID {
		t.Fatalf("repositories = %+v, want only %d", repos, first.RepositoryID)
	}
}

func TestRegisterAdoptsLedgerRecordBeforeFailingDuplicate(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t)

	// A second mirror shares the ledger but starts with an empty store.
	store2, err := sqlite.Open(filepath.Join(t.TempDir(), "mirror2.db"))
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	t.Cleanup(func() { store2.Close() })
	manager2, err := NewManager(Deps{
		Store:        store2,
		Ledger:       f.ledger,
		Hosting:      f.hosting,
		Fingerprints: fingerprint.NewService(f.hosting, nil),
		Scorer:       f.scorer,
		AgentAddress: "0xagent",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, err = manager2.runRegister(context.Background(), "job-adopt", RegisterPayload{
		URL:          "https://github.com/owner/original",
		OwnerAddress: "0xowner",
	})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("runRegister error = %v, want ErrAlreadyRegistered", err)
	}
	if f.ledger.registerHits != 1 {
		t.Fatalf("ledger register hits = %d, want 1", f.ledger.registerHits)
	}
	// The ledger record is mirrored locally as a confirmed row.
	repos, lerr := store2.ListRepositories(context.Background(), "")
	if lerr != nil {
		t.Fatalf("ListRepositories: %v", lerr)
	}
	if len(repos) != 1 || repos[0].LedgerID == nil || *repos[0].LedgerID != *registered.LedgerID {
		t.Fatalf("mirrored repositories = %+v, want ledger id %d", repos, *registered.LedgerID)
	}
	if repos[0].LedgerState != sqlite.LedgerStateConfirmed {
		t.Fatalf("mirrored state = %q, want confirmed", repos[0].LedgerState)
	}
}

func TestRegisterLedgerRejectionMarksRowFailed(t *testing.T) {
	f := newFixture(t)
	f.ledger.registerErr = fmt.Errorf("%w: inactive original", ledger.ErrRejected)
	_, err := f.manager.runRegister(context.Background(), "job-test", RegisterPayload{
		URL:          "https://github.com/owner/original",
		OwnerAddress: "0xowner",
	})
	if !errors.Is(err, ErrLedgerRejected) {
		t.Fatalf("error = %v, want ErrLedgerRejected", err)
	}
	// The hash is freed; no active row remains.
	repos, lerr := f.store.ListRepositories(context.Background(), "")
	if lerr != nil {
		t.Fatalf("ListRepositories: %v", lerr)
	}
	if len(repos) != 0 {
		t.Fatalf("active repositories = %d, want 0", len(repos))
	}
}

func TestRegisterUnconfirmedLeavesProvisionalRow(t *testing.T) {
	f := newFixture(t)
	f.ledger.registerErr = ledger.ErrUnconfirmed
	_, err := f.manager.runRegister(context.Background(), "job-test", RegisterPayload{
		URL:          "https://github.com/owner/original",
		OwnerAddress: "0xowner",
	})
	if err == nil || !errors.Is(err, ledger.ErrUnconfirmed) {
		t.Fatalf("error = %v, want wrapped ErrUnconfirmed", err)
	}
	pending, perr := f.store.PendingRepositories(context.Background())
	if perr != nil {
		t.Fatalf("PendingRepositories: %v", perr)
	}
	if len(pending) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(pending))
	}
	if pending[0].LedgerID != nil {
		t.Fatalf("provisional row has ledger id %v", *pending[0].LedgerID)
	}
}

func TestScanYieldsOnlyThresholdMatches(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t)
	f.hosting.candidates = []github.Candidate{
		{URL: "https://github.com/owner/original", FullName: "owner/original"}, // self, skipped
		{URL: "https://github.com/copier/original", FullName: "copier/original"},
		{URL: "https://github.com/bystander/unrelated", FullName: "bystander/unrelated"},
	}
	f.scorer.scores["https://github.com/copier/original"] = 88
	f.scorer.scores["https://github.com/bystander/unrelated"] = 12

	result, err := f.manager.runScan(context.Background(), ScanPayload{RepositoryID: registered.RepositoryID})
	if err != nil {
		t.Fatalf("runScan: %v", err)
	}
	if result.Examined != 2 {
		t.Fatalf("examined = %d, want 2", result.Examined)
	}
	if len(result.Matches) != 1 || result.Matches[0].URL != "https://github.com/copier/original" {
		t.Fatalf("matches = %+v", result.Matches)
	}
	if result.Matches[0].Score != 88 {
		t.Fatalf("match score = %d, want 88", result.Matches[0].Score)
	}
}

func TestReportConfirmsViolation(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t)
	f.scorer.scores["https://github.com/copier/original"] = 85

	result, err := f.manager.runReport(context.Background(), "job-test", ReportPayload{
		RepositoryID: registered.RepositoryID,
		ViolatingURL: "https://github.com/copier/original",
	})
	if err != nil {
		t.Fatalf("runReport: %v", err)
	}
	if result.LedgerID == nil || result.Score != 85 {
		t.Fatalf("result = %+v", result)
	}
	violation, verr := f.store.ViolationByID(context.Background(), result.ViolationID)
	if verr != nil {
		t.Fatalf("ViolationByID: %v", verr)
	}
	if violation.LedgerState != sqlite.LedgerStateConfirmed || violation.Status != "pending" {
		t.Fatalf("violation = %+v", violation)
	}
	if _, found, aerr := f.archive.Lookup(result.EvidenceHash); aerr != nil || !found {
		t.Fatalf("evidence %q not archived (found=%v err=%v)", result.EvidenceHash, found, aerr)
	}
	records, lerr := f.ledger.RepositoryViolations(context.Background(), *registered.LedgerID)
	if lerr != nil || len(records) != 1 {
		t.Fatalf("ledger violations = %+v (%v)", records, lerr)
	}
	if records[0].EvidenceHash != result.EvidenceHash {
		t.Fatalf("ledger evidence hash = %q, want %q", records[0].EvidenceHash, result.EvidenceHash)
	}
}

func TestReportBelowThresholdNeverReachesLedger(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t)
	f.scorer.scores["https://github.com/copier/original"] = 42

	_, err := f.manager.runReport(context.Background(), "job-test", ReportPayload{
		RepositoryID: registered.RepositoryID,
		ViolatingURL: "https://github.com/copier/original",
	})
	if err == nil {
		t.Fatalf("expected threshold failure")
	}
	violations, verr := f.store.ViolationsForRepository(context.Background(), registered.RepositoryID)
	if verr != nil {
		t.Fatalf("ViolationsForRepository: %v", verr)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %d, want 0", len(violations))
	}
}

func TestReportRequiresConfirmedRegistration(t *testing.T) {
	f := newFixture(t)
	f.ledger.registerErr = ledger.ErrUnconfirmed
	f.manager.runRegister(context.Background(), "job-test", RegisterPayload{
		URL:          "https://github.com/owner/original",
		OwnerAddress: "0xowner",
	})
	pending, _ := f.store.PendingRepositories(context.Background())
	if len(pending) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(pending))
	}
	_, err := f.manager.runReport(context.Background(), "job-test", ReportPayload{
		RepositoryID:    pending[0].ID,
		ViolatingURL:    "https://github.com/copier/original",
		SimilarityScore: 90,
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}
}

func TestUpdateStatusEnforcesStateMachine(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t)
	f.scorer.scores["https://github.com/copier/original"] = 85
	reported, err := f.manager.runReport(context.Background(), "job-test", ReportPayload{
		RepositoryID: registered.RepositoryID,
		ViolatingURL: "https://github.com/copier/original",
	})
	if err != nil {
		t.Fatalf("runReport: %v", err)
	}
	ctx := context.Background()

	updated, err := f.manager.UpdateStatus(ctx, reported.ViolationID, "verified", "", "")
	if err != nil {
		t.Fatalf("UpdateStatus pending->verified: %v", err)
	}
	if updated.Status != "verified" {
		t.Fatalf("status = %q, want verified", updated.Status)
	}

	if _, err := f.manager.UpdateStatus(ctx, reported.ViolationID, "disputed", "", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("verified->disputed error = %v, want ErrInvalidState", err)
	}

	resolved, err := f.manager.UpdateStatus(ctx, reported.ViolationID, "resolved", "settled", "")
	if err != nil {
		t.Fatalf("UpdateStatus verified->resolved: %v", err)
	}
	if resolved.Status != "resolved" {
		t.Fatalf("status = %q, want resolved", resolved.Status)
	}
	if resolved.NoticeReference == "" {
		t.Fatalf("resolved violation has no notice reference")
	}
	if f.storage.puts != 1 {
		t.Fatalf("storage puts = %d, want 1", f.storage.puts)
	}

	// Resolved is terminal.
	if _, err := f.manager.UpdateStatus(ctx, reported.ViolationID, "pending", "", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("resolved->pending error = %v, want ErrInvalidState", err)
	}
}

func TestUpdateStatusLedgerRejectionLeavesLocalUnchanged(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t)
	f.scorer.scores["https://github.com/copier/original"] = 85
	reported, err := f.manager.runReport(context.Background(), "job-test", ReportPayload{
		RepositoryID: registered.RepositoryID,
		ViolatingURL: "https://github.com/copier/original",
	})
	if err != nil {
		t.Fatalf("runReport: %v", err)
	}

	// The ledger refuses the caller; the mirror must not move.
	f.ledger.updateErr = fmt.Errorf("%w: caller not authorized", ledger.ErrRejected)
	_, err = f.manager.UpdateStatus(context.Background(), reported.ViolationID, "verified", "", "0xstranger")
	if !errors.Is(err, ErrLedgerRejected) {
		t.Fatalf("UpdateStatus error = %v, want ErrLedgerRejected", err)
	}
	violation, verr := f.store.ViolationByID(context.Background(), reported.ViolationID)
	if verr != nil {
		t.Fatalf("ViolationByID: %v", verr)
	}
	if violation.Status != "pending" {
		t.Fatalf("local status = %q, want pending", violation.Status)
	}
	if f.storage.puts != 0 {
		t.Fatalf("storage puts = %d, want 0", f.storage.puts)
	}
}

func TestSubmitRejectsBadPayloadsBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		kind    string
		payload string
	}{
		{"register", `{"url":"not a url","owner_address":"0xowner"}`},
		{"register", `{"url":"https://github.com/owner/repo"}`},
		{"report", `{"repository_id":1,"violating_url":"https://github.com/a/b","similarity_score":101}`},
		{"report", `{"violating_url":"https://github.com/a/b"}`},
		{"scan", `{}`},
		{"query", `{"question":"  "}`},
		{"teleport", `{}`},
	}
	for _, tc := range cases {
		if _, err := f.manager.Submit(ctx, tc.kind, json.RawMessage(tc.payload)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("Submit(%s, %s) error = %v, want ErrInvalidPayload", tc.kind, tc.payload, err)
		}
	}
	jobs, err := f.manager.List(ctx, sqlite.JobFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs persisted for invalid submissions: %d", len(jobs))
	}
}

func TestSubmitAndWorkerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.manager.Close()

	id, err := f.manager.Submit(ctx, KindRegister, json.RawMessage(
		`{"url":"https://github.com/owner/original","owner_address":"0xowner"}`))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := f.manager.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == sqlite.JobStatusCompleted {
			var result RegisterResult
			if err := json.Unmarshal(job.Result, &result); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if result.Status != RegisterStatusRegistered {
				t.Fatalf("result = %+v", result)
			}
			break
		}
		if job.Status == sqlite.JobStatusFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %s", id, job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPendingJobsRequeuedWhileRunning(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.manager.Close()

	// A pending row that never reached the queue, as happens when the
	// queue is full at submission time.
	if _, err := f.store.InsertJob(ctx, "job-requeue", KindRegister, json.RawMessage(
		`{"url":"https://github.com/owner/original","owner_address":"0xowner"}`)); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := f.manager.Get(ctx, "job-requeue")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == sqlite.JobStatusCompleted {
			break
		}
		if job.Status == sqlite.JobStatusFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never requeued, still %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCancelPendingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Manager not started: the job stays pending and cancellable.
	id, err := f.manager.Submit(ctx, KindAudit, json.RawMessage(`{"url":"https://github.com/owner/original"}`))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.manager.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	job, err := f.manager.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != sqlite.JobStatusFailed || job.Error != "canceled" {
		t.Fatalf("canceled job = %+v", job)
	}
	if err := f.manager.Cancel(ctx, id); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second cancel error = %v, want ErrInvalidState", err)
	}
	if err := f.manager.Cancel(ctx, "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel missing error = %v, want ErrNotFound", err)
	}
}
