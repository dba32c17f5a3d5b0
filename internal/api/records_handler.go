// File path: internal/api/records_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DataShieldAI/repoguard/internal/workflow"
)

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	repos, err := s.orch.Store().ListRepositories(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"repositories": repos})
}

func (s *Server) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	repo, err := s.orch.Store().RepositoryByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) handleRepositoryViolations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.orch.Store().RepositoryByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	violations, err := s.orch.Store().ViolationsForRepository(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"violations": violations})
}

func (s *Server) handleGetViolation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	violation, err := s.orch.Store().ViolationByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, violation)
}

type updateStatusRequest struct {
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	CallerAddress string `json:"caller_address"`
}

func (s *Server) handleUpdateViolationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", workflow.ErrInvalidPayload, err))
		return
	}
	violation, err := s.manager.UpdateStatus(r.Context(), id, strings.TrimSpace(req.Status), req.Reference, req.CallerAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, violation)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", workflow.ErrInvalidPayload, raw)
	}
	return id, nil
}
