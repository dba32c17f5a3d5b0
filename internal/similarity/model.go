// File path: internal/similarity/model.go
package similarity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/llm"
)

// Model is a scorer that asks the AI collaborator for a judgment and clamps
// it into range, falling back to the heuristic when the call fails or the
// reply cannot be parsed.
type Model struct {
	provider llm.Provider
	fallback *Heuristic
}

// NewModel constructs a model-backed scorer.
func NewModel(provider llm.Provider) *Model {
	return &Model{provider: provider, fallback: NewHeuristic()}
}

// Score asks the provider to rate the similarity of the two subjects.
func (m *Model) Score(ctx context.Context, original, candidate Subject) (Result, error) {
	if m.provider == nil {
		return m.fallback.Score(ctx, original, candidate)
	}
	prompt := fmt.Sprintf(
		"Original repository:\n  URL: %s\n  Name: %s\n  Language: %s\n  Description: %s\n  Features: %s\n\n"+
			"Candidate repository:\n  URL: %s\n  Name: %s\n  Language: %s\n  Description: %s\n  Features: %s\n\n"+
			"Rate how likely the candidate is an unauthorized copy of the original on a 0-100 scale. "+
			"Reply with the number on the first line and a one-sentence justification on the second.",
		original.URL, original.Name, original.Language, original.Description, strings.Join(original.Features, "; "),
		candidate.URL, candidate.Name, candidate.Language, candidate.Description, strings.Join(candidate.Features, "; "))
	reply, err := m.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You assess whether one software repository is a copy of another."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		common.Logger().Warn("similarity: model scoring failed, falling back to heuristic", "error", err)
		return m.fallback.Score(ctx, original, candidate)
	}
	score, evidence, ok := parseReply(reply)
	if !ok {
		common.Logger().Warn("similarity: unparseable model reply, falling back to heuristic")
		return m.fallback.Score(ctx, original, candidate)
	}
	return Result{Score: clamp(score), Evidence: evidence}, nil
}

func parseReply(reply string) (int, string, bool) {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	if len(lines) == 0 {
		return 0, "", false
	}
	first := strings.TrimSpace(lines[0])
	digits := strings.Builder{}
	for _, r := range first {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return 0, "", false
	}
	score, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, "", false
	}
	evidence := "model judgment"
	if len(lines) > 1 {
		if rest := strings.TrimSpace(strings.Join(lines[1:], " ")); rest != "" {
			evidence = rest
		}
	}
	return score, evidence, true
}
