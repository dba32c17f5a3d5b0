// File path: internal/api/agent_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/DataShieldAI/repoguard/internal/workflow"
)

type agentQueryRequest struct {
	Question string `json:"question"`
}

// handleAgentQuery answers synchronously; long-running analysis belongs in a
// query job instead.
func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req agentQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", workflow.ErrInvalidPayload, err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, fmt.Errorf("%w: question required", workflow.ErrInvalidPayload))
		return
	}
	answer, err := s.agent.Run(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
