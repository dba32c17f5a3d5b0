// File path: internal/notice/notice_test.go
package notice

import (
	"strings"
	"testing"
	"time"
)

func TestRenderIncludesFacts(t *testing.T) {
	rendered, err := Render(Details{
		OriginalURL:     "https://github.com/owner/original",
		ViolatingURL:    "https://github.com/copier/original",
		OwnerAddress:    "0xabc123",
		SimilarityScore: 91,
		EvidenceHash:    "deadbeef",
		EvidenceSummary: "identical name and feature overlap",
		ReportedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"DMCA TAKEDOWN NOTICE",
		"https://github.com/owner/original",
		"https://github.com/copier/original",
		"0xabc123",
		"91/100",
		"deadbeef",
		"identical name and feature overlap",
		"March 1, 2026",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("notice missing %q:\n%s", want, rendered)
		}
	}
}

func TestRenderDefaultsReportedAt(t *testing.T) {
	rendered, err := Render(Details{
		OriginalURL:  "https://github.com/owner/original",
		ViolatingURL: "https://github.com/copier/original",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(rendered, "0001-01-01") {
		t.Fatalf("zero time leaked into notice:\n%s", rendered)
	}
}
