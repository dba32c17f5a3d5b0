// File path: internal/evidence/bundle.go
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Bundle is the full evidence record for one violation report. The ledger
// only carries Hash(); the archive keeps the bundle itself.
type Bundle struct {
	OriginalURL     string    `json:"original_url"`
	ViolatingURL    string    `json:"violating_url"`
	SimilarityScore int       `json:"similarity_score"`
	MatchedFeatures []string  `json:"matched_features"`
	Evidence        string    `json:"evidence"`
	ReportedAt      time.Time `json:"reported_at"`
}

// Hash returns the SHA-256 of the bundle's canonical JSON. The hashed fields
// are fixed; adding fields to Bundle does not change existing hashes only if
// they are excluded here.
func (b Bundle) Hash() (string, error) {
	canonical := struct {
		ViolatingURL    string   `json:"violating_url"`
		SimilarityScore int      `json:"similarity_score"`
		MatchedFeatures []string `json:"matched_features"`
		ReportedAt      string   `json:"reported_at"`
	}{
		ViolatingURL:    b.ViolatingURL,
		SimilarityScore: b.SimilarityScore,
		MatchedFeatures: b.MatchedFeatures,
		ReportedAt:      b.ReportedAt.UTC().Format(time.RFC3339),
	}
	if canonical.MatchedFeatures == nil {
		canonical.MatchedFeatures = []string{}
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encode evidence bundle: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
