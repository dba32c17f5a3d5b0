// File path: internal/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status mirrors the ledger's violation status enum. Ordinals are part of the
// wire contract and must not change.
type Status int

const (
	StatusPending  Status = 0
	StatusVerified Status = 1
	StatusDisputed Status = 2
	StatusResolved Status = 3
	StatusRejected Status = 4
)

// MinReportScore is the lowest similarity score the ledger accepts for a
// violation report.
const MinReportScore = 70

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus converts a status name back to its enum value.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "pending":
		return StatusPending, nil
	case "verified":
		return StatusVerified, nil
	case "disputed":
		return StatusDisputed, nil
	case "resolved":
		return StatusResolved, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return 0, fmt.Errorf("unknown status %q", name)
	}
}

// CanTransition reports whether the violation state machine allows moving
// from s to next. Resolved and rejected are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusVerified || next == StatusDisputed || next == StatusRejected
	case StatusDisputed:
		return next == StatusResolved || next == StatusRejected
	case StatusVerified:
		return next == StatusResolved
	default:
		return false
	}
}

// Typed failures for ledger writes. ErrUnconfirmed means the transaction may
// still land; callers must re-read before concluding anything.
var (
	ErrRejected    = errors.New("ledger rejected the write")
	ErrUnconfirmed = errors.New("ledger write unconfirmed")
	ErrUnavailable = errors.New("ledger unavailable")
	ErrNotFound    = errors.New("ledger record not found")
)

// Repository is a registration record as the ledger reports it.
type Repository struct {
	ID           int64     `json:"id"`
	OwnerAddress string    `json:"owner_address"`
	SourceURL    string    `json:"source_url"`
	ContentHash  string    `json:"content_hash"`
	Fingerprint  string    `json:"fingerprint"`
	KeyFeatures  []string  `json:"key_features"`
	LicenseType  string    `json:"license_type"`
	IsActive     bool      `json:"is_active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Violation is a violation record as the ledger reports it.
type Violation struct {
	ID              int64     `json:"id"`
	OriginalRepoID  int64     `json:"original_repo_id"`
	ReporterAddress string    `json:"reporter_address"`
	ViolatingURL    string    `json:"violating_url"`
	EvidenceHash    string    `json:"evidence_hash"`
	SimilarityScore int       `json:"similarity_score"`
	Status          Status    `json:"status"`
	ReportedAt      time.Time `json:"reported_at"`
}

// RegisterRequest carries the fields of a registration write.
type RegisterRequest struct {
	OwnerAddress string   `json:"owner_address"`
	SourceURL    string   `json:"source_url"`
	ContentHash  string   `json:"content_hash"`
	Fingerprint  string   `json:"fingerprint"`
	KeyFeatures  []string `json:"key_features"`
	LicenseType  string   `json:"license_type"`
	MetadataRef  string   `json:"metadata_ref,omitempty"`
}

// ReportRequest carries the fields of a violation report write.
type ReportRequest struct {
	OriginalRepoID  int64  `json:"original_repo_id"`
	ReporterAddress string `json:"reporter_address"`
	ViolatingURL    string `json:"violating_url"`
	EvidenceHash    string `json:"evidence_hash"`
	SimilarityScore int    `json:"similarity_score"`
}

// Client is the narrow surface the pipelines need from the ledger. Writes
// return the ledger-assigned id only once the transaction is confirmed.
type Client interface {
	Register(ctx context.Context, req RegisterRequest) (int64, error)
	GetByHash(ctx context.Context, contentHash string) (Repository, error)
	GetByLedgerID(ctx context.Context, id int64) (Repository, error)
	ReportViolation(ctx context.Context, req ReportRequest) (int64, error)
	UpdateStatus(ctx context.Context, violationID int64, status Status, reference, callerAddress string) error
	UserRepositories(ctx context.Context, ownerAddress string) ([]Repository, error)
	RepositoryViolations(ctx context.Context, repoID int64) ([]Violation, error)
}
