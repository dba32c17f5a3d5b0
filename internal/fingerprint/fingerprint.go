// File path: internal/fingerprint/fingerprint.go
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/github"
	"github.com/DataShieldAI/repoguard/internal/llm"
)

// Analysis is the fingerprinting result for one repository.
type Analysis struct {
	NormalizedURL string            `json:"normalized_url"`
	Owner         string            `json:"owner"`
	Name          string            `json:"name"`
	ContentHash   string            `json:"content_hash"`
	Digest        string            `json:"digest"`
	KeyFeatures   []string          `json:"key_features"`
	StateMarker   string            `json:"state_marker"`
	Metadata      map[string]string `json:"metadata"`
}

// Service derives content hashes and feature digests from hosting metadata.
// The provider is optional; without one, key features fall back to a
// deterministic summary.
type Service struct {
	hosting  github.Client
	provider llm.Provider
}

// NewService constructs a fingerprint service. provider may be nil.
func NewService(hosting github.Client, provider llm.Provider) *Service {
	return &Service{hosting: hosting, provider: provider}
}

// Analyze normalizes the URL, fetches hosting metadata, and derives the
// content hash and feature digest.
func (s *Service) Analyze(ctx context.Context, rawURL string) (*Analysis, error) {
	normalized, owner, name, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	meta, err := s.hosting.Metadata(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", normalized, err)
	}
	marker := meta.StateMarker()
	analysis := &Analysis{
		NormalizedURL: normalized,
		Owner:         owner,
		Name:          name,
		ContentHash:   ContentHash(normalized, marker),
		Digest:        featureDigest(meta),
		KeyFeatures:   s.keyFeatures(ctx, meta),
		StateMarker:   marker,
		Metadata: map[string]string{
			"language":    meta.Language,
			"description": meta.Description,
			"stars":       strconv.Itoa(meta.Stars),
		},
	}
	return analysis, nil
}

// ContentHash derives the registration identity hash from the normalized URL
// and the content state marker.
func ContentHash(normalizedURL, stateMarker string) string {
	h := sha256.New()
	h.Write([]byte(normalizedURL))
	h.Write([]byte{0})
	h.Write([]byte(stateMarker))
	return hex.EncodeToString(h.Sum(nil))
}

// featureDigest hashes the canonical JSON of the identifying metadata fields.
func featureDigest(meta *github.Metadata) string {
	files := append([]string(nil), meta.TopFiles...)
	sort.Strings(files)
	canonical := struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Language    string   `json:"language"`
		Size        int      `json:"size"`
		TopFiles    []string `json:"top_files"`
		CreatedAt   string   `json:"created_at"`
	}{
		Name:        meta.Name,
		Description: meta.Description,
		Language:    meta.Language,
		Size:        meta.Size,
		TopFiles:    files,
		CreatedAt:   meta.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		data = []byte(meta.FullName)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// keyFeatures asks the provider to extract distinguishing features, falling
// back to a deterministic summary when no provider is configured or the call
// fails.
func (s *Service) keyFeatures(ctx context.Context, meta *github.Metadata) []string {
	fallback := []string{
		fmt.Sprintf("Language: %s", orUnknown(meta.Language)),
		fmt.Sprintf("Files: %d", len(meta.TopFiles)),
	}
	if meta.Description != "" {
		fallback = append(fallback, "Description: "+meta.Description)
	}
	if s.provider == nil {
		return fallback
	}
	prompt := fmt.Sprintf(
		"Repository: %s\nDescription: %s\nLanguage: %s\nTop files: %s\n\n"+
			"List up to five short distinguishing features of this repository, one per line, no numbering.",
		meta.FullName, meta.Description, meta.Language, strings.Join(meta.TopFiles, ", "))
	reply, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You extract concise identifying features of software repositories."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		common.Logger().Warn("fingerprint: feature extraction failed, using fallback", "error", err)
		return fallback
	}
	features := []string{}
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line == "" {
			continue
		}
		features = append(features, line)
		if len(features) == 5 {
			break
		}
	}
	if len(features) == 0 {
		return fallback
	}
	return features
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
