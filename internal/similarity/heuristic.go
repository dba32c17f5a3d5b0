// File path: internal/similarity/heuristic.go
package similarity

import (
	"context"
	"fmt"
	"strings"
)

// Heuristic is a deterministic scorer built on name equality and token
// overlap across descriptions and feature lists.
type Heuristic struct{}

// NewHeuristic constructs the deterministic scorer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Score compares the two subjects without any external calls.
func (h *Heuristic) Score(ctx context.Context, original, candidate Subject) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	score := 0
	evidence := []string{}

	origName := strings.ToLower(strings.TrimSpace(original.Name))
	candName := strings.ToLower(strings.TrimSpace(candidate.Name))
	switch {
	case origName != "" && origName == candName:
		score += 50
		evidence = append(evidence, fmt.Sprintf("identical name %q", origName))
	case origName != "" && (strings.Contains(candName, origName) || strings.Contains(origName, candName)):
		score += 30
		evidence = append(evidence, fmt.Sprintf("name overlap between %q and %q", origName, candName))
	}

	if original.Language != "" && strings.EqualFold(original.Language, candidate.Language) {
		score += 10
		evidence = append(evidence, "same primary language "+original.Language)
	}

	descOverlap := tokenOverlap(tokenize(original.Description), tokenize(candidate.Description))
	if descOverlap > 0 {
		added := int(descOverlap * 20)
		score += added
		evidence = append(evidence, fmt.Sprintf("description token overlap %.0f%%", descOverlap*100))
	}

	featOverlap := tokenOverlap(tokenize(strings.Join(original.Features, " ")),
		tokenize(strings.Join(candidate.Features, " ")))
	if featOverlap > 0 {
		added := int(featOverlap * 20)
		score += added
		evidence = append(evidence, fmt.Sprintf("feature token overlap %.0f%%", featOverlap*100))
	}

	summary := "no overlap detected"
	if len(evidence) > 0 {
		summary = strings.Join(evidence, "; ")
	}
	return Result{Score: clamp(score), Evidence: summary}, nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?()[]{}\"'")
		if len(token) < 3 {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}

// tokenOverlap returns the Jaccard-style overlap of the smaller set.
func tokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	shared := 0
	for token := range smaller {
		if _, ok := larger[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}
