// File path: internal/similarity/similarity.go
package similarity

import "context"

// Subject is one side of a similarity comparison.
type Subject struct {
	URL         string
	Name        string
	Language    string
	Description string
	Features    []string
}

// Result is a bounded similarity judgment with a human-readable summary of
// the matching evidence.
type Result struct {
	Score    int    `json:"score"`
	Evidence string `json:"evidence"`
}

// Scorer judges how similar a candidate is to an original, on a 0-100 scale.
type Scorer interface {
	Score(ctx context.Context, original, candidate Subject) (Result, error)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
