// File path: internal/workflow/types.go
package workflow

import (
	"errors"
)

// Job kinds form a closed set; dispatch over them is exhaustive.
const (
	KindRegister     = "register"
	KindAudit        = "audit"
	KindScan         = "scan"
	KindReport       = "report"
	KindFullWorkflow = "full_workflow"
	KindQuery        = "query"
)

// Sentinel errors surfaced by the manager. The API maps these to HTTP
// statuses.
var (
	ErrInvalidPayload    = errors.New("invalid job payload")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrAlreadyRegistered = errors.New("repository already registered")
	ErrLedgerRejected    = errors.New("ledger rejected the operation")
)

// RegisterPayload requests a repository registration.
type RegisterPayload struct {
	URL          string `json:"url"`
	OwnerAddress string `json:"owner_address"`
	LicenseType  string `json:"license_type,omitempty"`
}

// AuditPayload requests a security review of a repository.
type AuditPayload struct {
	URL string `json:"url"`
}

// ScanPayload requests a violation scan for a registered repository.
type ScanPayload struct {
	RepositoryID int64 `json:"repository_id"`
}

// ReportPayload requests a violation report against a registered repository.
// SimilarityScore is optional; zero means the pipeline scores the candidate.
type ReportPayload struct {
	RepositoryID    int64  `json:"repository_id"`
	ViolatingURL    string `json:"violating_url"`
	SimilarityScore int    `json:"similarity_score,omitempty"`
}

// FullWorkflowPayload runs the complete protection workflow for one URL.
type FullWorkflowPayload struct {
	URL          string `json:"url"`
	OwnerAddress string `json:"owner_address"`
	LicenseType  string `json:"license_type,omitempty"`
}

// QueryPayload asks the AI collaborator a free-form question.
type QueryPayload struct {
	Question string `json:"question"`
}

// RegisterStatusRegistered is the outcome recorded by a completed register
// job. Duplicate and unconfirmed registrations end in the job's error field
// instead.
const RegisterStatusRegistered = "registered"

// RegisterResult is the durable outcome of a register job.
type RegisterResult struct {
	RepositoryID int64  `json:"repository_id"`
	LedgerID     *int64 `json:"ledger_id,omitempty"`
	ContentHash  string `json:"content_hash"`
	Status       string `json:"status"`
}

// AuditResult is the durable outcome of an audit job.
type AuditResult struct {
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Provider string `json:"provider"`
}

// Match is one scan hit at or above the reporting threshold.
type Match struct {
	URL      string `json:"url"`
	FullName string `json:"full_name"`
	Score    int    `json:"score"`
	Evidence string `json:"evidence"`
}

// ScanResult is the durable outcome of a scan job.
type ScanResult struct {
	RepositoryID int64   `json:"repository_id"`
	Examined     int     `json:"examined"`
	Matches      []Match `json:"matches"`
}

// ReportResult is the durable outcome of a report job.
type ReportResult struct {
	ViolationID  int64  `json:"violation_id"`
	LedgerID     *int64 `json:"ledger_id,omitempty"`
	EvidenceHash string `json:"evidence_hash"`
	Score        int    `json:"score"`
	Status       string `json:"status"`
}

// StepOutcome records one step of a full workflow run.
type StepOutcome struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// FullWorkflowResult is the durable outcome of a full_workflow job.
type FullWorkflowResult struct {
	Registration RegisterResult `json:"registration"`
	Steps        []StepOutcome  `json:"steps"`
	Reported     []ReportResult `json:"reported,omitempty"`
}

// QueryResult is the durable outcome of a query job.
type QueryResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
