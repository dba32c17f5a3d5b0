// File path: internal/workflow/runner.go
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

// execute dispatches a claimed job to its pipeline. The switch is exhaustive
// over the job kinds; Submit rejects anything else.
func (m *Manager) execute(ctx context.Context, job sqlite.Job) (interface{}, error) {
	switch job.Type {
	case KindRegister:
		var payload RegisterPayload
		if err := json.Unmarshal(job.Input, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return m.runRegister(ctx, job.ID, payload)
	case KindAudit:
		var payload AuditPayload
		if err := json.Unmarshal(job.Input, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return m.runAudit(ctx, payload)
	case KindScan:
		var payload ScanPayload
		if err := json.Unmarshal(job.Input, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return m.runScan(ctx, payload)
	case KindReport:
		var payload ReportPayload
		if err := json.Unmarshal(job.Input, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return m.runReport(ctx, job.ID, payload)
	case KindFullWorkflow:
		var payload FullWorkflowPayload
		if err := json.Unmarshal(job.Input, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return m.runFullWorkflow(ctx, job.ID, payload)
	case KindQuery:
		var payload QueryPayload
		if err := json.Unmarshal(job.Input, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		answer, err := m.agent.Run(ctx, payload.Question)
		if err != nil {
			return nil, err
		}
		return QueryResult{Question: payload.Question, Answer: answer}, nil
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidPayload, job.Type)
	}
}
