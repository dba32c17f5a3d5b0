// File path: internal/workflow/audit.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DataShieldAI/repoguard/internal/llm"
)

// runAudit fetches metadata and asks the AI collaborator for a security
// review. The summary is advisory; no invariant depends on it.
func (m *Manager) runAudit(ctx context.Context, payload AuditPayload) (AuditResult, error) {
	analysis, err := m.prints.Analyze(ctx, payload.URL)
	if err != nil {
		return AuditResult{}, fmt.Errorf("analyze repository: %w", err)
	}
	if m.provider == nil {
		return AuditResult{}, errors.New("no provider configured for audit")
	}
	prompt := fmt.Sprintf(
		"Repository: %s\nLanguage: %s\nDescription: %s\nKey features:\n- %s\n\n"+
			"Provide a short security review: overall severity (low/medium/high), "+
			"notable issues, and recommendations.",
		analysis.NormalizedURL,
		analysis.Metadata["language"],
		analysis.Metadata["description"],
		strings.Join(analysis.KeyFeatures, "\n- "))
	summary, err := m.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You are a security reviewer for software repositories."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return AuditResult{}, fmt.Errorf("security review: %w", err)
	}
	return AuditResult{
		URL:      analysis.NormalizedURL,
		Summary:  summary,
		Provider: m.provider.Name(),
	}, nil
}

// runFullWorkflow chains the complete pipeline: audit, register, scan, then
// report every match at or above the threshold. A step failure after the
// registration succeeded still reports the registration outcome.
func (m *Manager) runFullWorkflow(ctx context.Context, jobID string, payload FullWorkflowPayload) (FullWorkflowResult, error) {
	result := FullWorkflowResult{}

	if audit, err := m.runAudit(ctx, AuditPayload{URL: payload.URL}); err != nil {
		result.Steps = append(result.Steps, StepOutcome{Step: "audit", Status: "failed", Detail: err.Error()})
	} else {
		result.Steps = append(result.Steps, StepOutcome{Step: "audit", Status: "completed", Detail: truncate(audit.Summary, 200)})
	}

	registration, err := m.runRegister(ctx, jobID, RegisterPayload{
		URL:          payload.URL,
		OwnerAddress: payload.OwnerAddress,
		LicenseType:  payload.LicenseType,
	})
	if err != nil {
		result.Steps = append(result.Steps, StepOutcome{Step: "register", Status: "failed", Detail: err.Error()})
		return result, fmt.Errorf("register step: %w", err)
	}
	result.Registration = registration
	result.Steps = append(result.Steps, StepOutcome{Step: "register", Status: "completed", Detail: registration.Status})

	scan, err := m.runScan(ctx, ScanPayload{RepositoryID: registration.RepositoryID})
	if err != nil {
		result.Steps = append(result.Steps, StepOutcome{Step: "scan", Status: "failed", Detail: err.Error()})
		return result, nil
	}
	result.Steps = append(result.Steps, StepOutcome{
		Step:   "scan",
		Status: "completed",
		Detail: fmt.Sprintf("%d candidates examined, %d matches", scan.Examined, len(scan.Matches)),
	})

	for _, match := range scan.Matches {
		report, err := m.runReport(ctx, jobID, ReportPayload{
			RepositoryID:    registration.RepositoryID,
			ViolatingURL:    match.URL,
			SimilarityScore: match.Score,
		})
		if err != nil {
			result.Steps = append(result.Steps, StepOutcome{
				Step: "report", Status: "failed",
				Detail: fmt.Sprintf("%s: %v", match.URL, err),
			})
			continue
		}
		result.Reported = append(result.Reported, report)
		result.Steps = append(result.Steps, StepOutcome{
			Step: "report", Status: "completed",
			Detail: fmt.Sprintf("%s scored %d", match.URL, report.Score),
		})
	}
	return result, nil
}

func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
