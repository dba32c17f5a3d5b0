// File path: internal/notice/notice.go
package notice

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// Details carries the facts a takedown notice is rendered from.
type Details struct {
	OriginalURL     string
	ViolatingURL    string
	OwnerAddress    string
	SimilarityScore int
	EvidenceHash    string
	EvidenceSummary string
	ReportedAt      time.Time
}

var noticeTemplate = template.Must(template.New("notice").Parse(`DMCA TAKEDOWN NOTICE

Date: {{.Date}}

To Whom It May Concern:

This is a formal notification under the Digital Millennium Copyright Act
(17 U.S.C. § 512) requesting the removal of infringing material.

1. IDENTIFICATION OF COPYRIGHTED WORK
   Original repository: {{.OriginalURL}}
   Rights holder address: {{.OwnerAddress}}
   The original work is registered on an append-only ledger with a
   timestamped content fingerprint predating the infringing copy.

2. IDENTIFICATION OF INFRINGING MATERIAL
   Infringing repository: {{.ViolatingURL}}
   Measured similarity: {{.SimilarityScore}}/100
   Evidence summary: {{.EvidenceSummary}}
   Evidence fingerprint (SHA-256): {{.EvidenceHash}}

3. STATEMENT OF GOOD FAITH
   The undersigned has a good-faith belief that use of the material in the
   manner complained of is not authorized by the copyright owner, its agent,
   or the law.

4. STATEMENT OF ACCURACY
   The information in this notification is accurate, and under penalty of
   perjury, the undersigned is authorized to act on behalf of the owner of
   the exclusive right that is allegedly infringed.

Reported at: {{.ReportedAt}}
`))

// Render produces the plain-text notice for the given details.
func Render(details Details) (string, error) {
	reportedAt := details.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now()
	}
	data := struct {
		Details
		Date       string
		ReportedAt string
	}{
		Details:    details,
		Date:       reportedAt.UTC().Format("January 2, 2006"),
		ReportedAt: reportedAt.UTC().Format(time.RFC3339),
	}
	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	return buf.String(), nil
}
