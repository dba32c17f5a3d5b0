// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DataShieldAI/repoguard/internal/agent"
	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/data/orchestrator"
	"github.com/DataShieldAI/repoguard/internal/fingerprint"
	"github.com/DataShieldAI/repoguard/internal/llm"
	"github.com/DataShieldAI/repoguard/internal/similarity"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
	"github.com/DataShieldAI/repoguard/internal/workflow"
)

// Server exposes the job API and the read surface over the local mirror.
type Server struct {
	router  chi.Router
	manager *workflow.Manager
	orch    *orchestrator.Orchestrator
	agent   *agent.Runner
}

// NewServer wires the workflow manager over the orchestrator's collaborators
// and starts both background loops.
func NewServer(ctx context.Context, orch *orchestrator.Orchestrator, provider llm.Provider) (*Server, error) {
	cfg := orch.Config()
	prints := fingerprint.NewService(orch.Hosting(), provider)
	var scorer similarity.Scorer = similarity.NewHeuristic()
	if provider != nil && provider.Name() != "local" {
		scorer = similarity.NewModel(provider)
	}
	agentRunner := agent.NewRunner(provider, orch.Store())
	manager, err := workflow.NewManager(workflow.Deps{
		Store:        orch.Store(),
		Ledger:       orch.Ledger(),
		Hosting:      orch.Hosting(),
		Fingerprints: prints,
		Scorer:       scorer,
		Provider:     provider,
		Storage:      orch.Storage(),
		Archive:      orch.Archive(),
		Agent:        agentRunner,
		AgentAddress: orch.AgentAddress(),
		MinScore:     cfg.MinScore,
		ScanLimit:    cfg.ScanLimit,
		Workers:      cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("build workflow manager: %w", err)
	}
	if err := manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("start workflow manager: %w", err)
	}
	orch.Start(ctx)

	server := &Server{manager: manager, orch: orch, agent: agentRunner}
	server.routes()
	return server, nil
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/cancel", s.handleCancelJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)

		r.Get("/repositories", s.handleListRepositories)
		r.Get("/repositories/{id}", s.handleGetRepository)
		r.Get("/repositories/{id}/violations", s.handleRepositoryViolations)
		r.Get("/violations/{id}", s.handleGetViolation)
		r.Post("/violations/{id}/status", s.handleUpdateViolationStatus)

		r.Post("/agent/query", s.handleAgentQuery)
		r.Get("/logs", s.handleLogs)
	})
	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops the workflow manager; the orchestrator is closed by its owner.
func (s *Server) Close() {
	s.manager.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		common.Logger().Warn("api: encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrInvalidPayload), errors.Is(err, fingerprint.ErrInvalidURL):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, sqlite.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, workflow.ErrAlreadyRegistered),
		errors.Is(err, workflow.ErrLedgerRejected),
		errors.Is(err, sqlite.ErrInvalidState):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
