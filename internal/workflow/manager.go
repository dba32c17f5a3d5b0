// File path: internal/workflow/manager.go
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DataShieldAI/repoguard/internal/agent"
	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/evidence"
	"github.com/DataShieldAI/repoguard/internal/fingerprint"
	"github.com/DataShieldAI/repoguard/internal/github"
	"github.com/DataShieldAI/repoguard/internal/ipfs"
	"github.com/DataShieldAI/repoguard/internal/ledger"
	"github.com/DataShieldAI/repoguard/internal/llm"
	"github.com/DataShieldAI/repoguard/internal/similarity"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

const defaultQueueDepth = 256

// Deps carries the collaborators the manager wires together. Storage may be
// nil; notice hosting is then skipped.
type Deps struct {
	Store        *sqlite.Store
	Ledger       ledger.Client
	Hosting      github.Client
	Fingerprints *fingerprint.Service
	Scorer       similarity.Scorer
	Provider     llm.Provider
	Storage      ipfs.Store
	Archive      *evidence.Archive
	Agent        *agent.Runner
	AgentAddress string
	MinScore     int
	ScanLimit    int
	Workers      int

	// RequeueInterval is how often pending jobs that missed the queue are
	// re-enqueued. Zero means the 30s default.
	RequeueInterval time.Duration
}

// Manager owns the durable job lifecycle: creation, a bounded worker pool,
// status transitions, and result persistence. Jobs run to completion on one
// worker; there are no automatic retries.
type Manager struct {
	store        *sqlite.Store
	ledger       ledger.Client
	hosting      github.Client
	prints       *fingerprint.Service
	scorer       similarity.Scorer
	provider     llm.Provider
	storage      ipfs.Store
	archive      *evidence.Archive
	agent        *agent.Runner
	agentAddress string
	minScore     int
	scanLimit    int
	workers      int
	requeueEvery time.Duration

	queue  chan string
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewManager constructs a manager from its dependencies.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("workflow manager requires a store")
	}
	if deps.Ledger == nil {
		return nil, errors.New("workflow manager requires a ledger client")
	}
	if deps.Fingerprints == nil {
		deps.Fingerprints = fingerprint.NewService(deps.Hosting, deps.Provider)
	}
	if deps.Scorer == nil {
		deps.Scorer = similarity.NewHeuristic()
	}
	if deps.Agent == nil {
		deps.Agent = agent.NewRunner(deps.Provider, deps.Store)
	}
	if deps.MinScore <= 0 || deps.MinScore > 100 {
		deps.MinScore = ledger.MinReportScore
	}
	if deps.ScanLimit <= 0 {
		deps.ScanLimit = 10
	}
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	if deps.RequeueInterval <= 0 {
		deps.RequeueInterval = 30 * time.Second
	}
	return &Manager{
		store:        deps.Store,
		ledger:       deps.Ledger,
		hosting:      deps.Hosting,
		prints:       deps.Fingerprints,
		scorer:       deps.Scorer,
		provider:     deps.Provider,
		storage:      deps.Storage,
		archive:      deps.Archive,
		agent:        deps.Agent,
		agentAddress: deps.AgentAddress,
		minScore:     deps.MinScore,
		scanLimit:    deps.ScanLimit,
		workers:      deps.Workers,
		requeueEvery: deps.RequeueInterval,
		queue:        make(chan string, defaultQueueDepth),
	}, nil
}

// MinScore reports the reporting threshold in effect.
func (m *Manager) MinScore() int { return m.minScore }

// Start launches the worker pool, requeues jobs left pending by a prior run,
// and keeps a periodic requeue pass running so a job that missed the queue
// (full at submission time) still reaches a worker. Start is idempotent.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(runCtx)
	}
	m.wg.Add(1)
	go m.requeueLoop(runCtx)

	return m.requeuePending(runCtx)
}

// requeuePending enqueues jobs still marked pending, oldest first. The
// compare-and-set claim makes a double enqueue harmless. A full queue ends
// the pass; the next tick picks up the rest.
func (m *Manager) requeuePending(ctx context.Context) error {
	pending, err := m.store.ListJobs(ctx, sqlite.JobFilter{Status: sqlite.JobStatusPending})
	if err != nil {
		return fmt.Errorf("requeue pending jobs: %w", err)
	}
	requeued := 0
enqueue:
	for i := len(pending) - 1; i >= 0; i-- {
		select {
		case m.queue <- pending[i].ID:
			requeued++
		case <-ctx.Done():
			return ctx.Err()
		default:
			break enqueue
		}
	}
	if requeued > 0 {
		common.Logger().Info("workflow: requeued pending jobs", "count", requeued)
	}
	return nil
}

func (m *Manager) requeueLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.requeueEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.requeuePending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				common.Logger().Warn("workflow: pending requeue pass failed", "error", err)
			}
		}
	}
}

// Close stops the workers and waits for in-flight jobs to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Submit validates the payload, persists a pending job, and enqueues it.
// Validation failures surface before any side effect.
func (m *Manager) Submit(ctx context.Context, kind string, payload json.RawMessage) (string, error) {
	normalized, err := m.validatePayload(kind, payload)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := m.store.InsertJob(ctx, id, kind, normalized); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	select {
	case m.queue <- id:
	default:
		common.Logger().Warn("workflow: queue full, job waits for requeue", "job", id)
	}
	common.Logger().Info("workflow: job submitted", "job", id, "kind", kind)
	return id, nil
}

// validatePayload checks shape and ranges up front and returns the canonical
// input document stored with the job.
func (m *Manager) validatePayload(kind string, payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	switch kind {
	case KindRegister:
		var p RegisterPayload
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if _, _, _, err := fingerprint.NormalizeURL(p.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if strings.TrimSpace(p.OwnerAddress) == "" {
			return nil, fmt.Errorf("%w: owner_address required", ErrInvalidPayload)
		}
		return json.Marshal(p)
	case KindAudit:
		var p AuditPayload
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if _, _, _, err := fingerprint.NormalizeURL(p.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return json.Marshal(p)
	case KindScan:
		var p ScanPayload
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if p.RepositoryID <= 0 {
			return nil, fmt.Errorf("%w: repository_id required", ErrInvalidPayload)
		}
		return json.Marshal(p)
	case KindReport:
		var p ReportPayload
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if p.RepositoryID <= 0 {
			return nil, fmt.Errorf("%w: repository_id required", ErrInvalidPayload)
		}
		if _, _, _, err := fingerprint.NormalizeURL(p.ViolatingURL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.SimilarityScore < 0 || p.SimilarityScore > 100 {
			return nil, fmt.Errorf("%w: similarity_score %d out of range", ErrInvalidPayload, p.SimilarityScore)
		}
		return json.Marshal(p)
	case KindFullWorkflow:
		var p FullWorkflowPayload
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if _, _, _, err := fingerprint.NormalizeURL(p.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if strings.TrimSpace(p.OwnerAddress) == "" {
			return nil, fmt.Errorf("%w: owner_address required", ErrInvalidPayload)
		}
		return json.Marshal(p)
	case KindQuery:
		var p QueryPayload
		if err := strictDecode(payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Question) == "" {
			return nil, fmt.Errorf("%w: question required", ErrInvalidPayload)
		}
		return json.Marshal(p)
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidPayload, kind)
	}
}

func strictDecode(payload json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Get fetches a job by id.
func (m *Manager) Get(ctx context.Context, id string) (sqlite.Job, error) {
	job, err := m.store.GetJob(ctx, id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return sqlite.Job{}, ErrNotFound
	}
	return job, err
}

// List returns a snapshot of jobs matching the filter.
func (m *Manager) List(ctx context.Context, filter sqlite.JobFilter) ([]sqlite.Job, error) {
	return m.store.ListJobs(ctx, filter)
}

// Cancel fails a job that has not started yet. A running or terminal job
// returns ErrInvalidState.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	err := m.store.CancelJob(ctx, id)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, sqlite.ErrInvalidState):
		return ErrInvalidState
	case err != nil:
		return err
	}
	m.store.AppendAudit(ctx, id, "job_canceled", "")
	return nil
}

// Delete removes a job row. Operator surface; the pipelines never delete.
func (m *Manager) Delete(ctx context.Context, id string) error {
	err := m.store.DeleteJob(ctx, id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	logger := common.Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			job, err := m.store.GetJob(ctx, id)
			if err != nil {
				logger.Warn("workflow: dropped queued job", "job", id, "error", err)
				continue
			}
			if err := m.store.MarkJobRunning(ctx, id); err != nil {
				// Lost the claim: canceled meanwhile or taken by another worker.
				continue
			}
			m.runJob(ctx, job)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, job sqlite.Job) {
	logger := common.Logger()
	result, err := m.execute(ctx, job)
	if err != nil {
		logger.Warn("workflow: job failed", "job", job.ID, "kind", job.Type, "error", err)
		if ferr := m.store.FailJob(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error("workflow: persist job failure", "job", job.ID, "error", ferr)
		}
		m.store.AppendAudit(ctx, job.ID, "job_failed", err.Error())
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{}`)
	}
	if cerr := m.store.CompleteJob(ctx, job.ID, payload); cerr != nil {
		logger.Error("workflow: persist job result", "job", job.ID, "error", cerr)
		return
	}
	m.store.AppendAudit(ctx, job.ID, "job_completed", job.Type)
	logger.Info("workflow: job completed", "job", job.ID, "kind", job.Type)
}
