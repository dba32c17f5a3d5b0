// File path: internal/sqlite/types.go
package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Ledger reconciliation states for mirrored rows.
const (
	LedgerStatePending   = "pending-ledger"
	LedgerStateConfirmed = "confirmed"
	LedgerStateFailed    = "failed-ledger"
)

// Repository is a mirrored registration record. LedgerID is nil until the
// ledger write is confirmed.
type Repository struct {
	ID           int64             `json:"id"`
	LedgerID     *int64            `json:"ledger_id,omitempty"`
	OwnerAddress string            `json:"owner_address"`
	SourceURL    string            `json:"source_url"`
	ContentHash  string            `json:"content_hash"`
	Fingerprint  string            `json:"fingerprint"`
	KeyFeatures  []string          `json:"key_features"`
	LicenseType  string            `json:"license_type"`
	IsActive     bool              `json:"is_active"`
	LedgerState  string            `json:"ledger_state"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Violation is a mirrored violation report against a registered repository.
type Violation struct {
	ID              int64             `json:"id"`
	LedgerID        *int64            `json:"ledger_id,omitempty"`
	OriginalRepoID  int64             `json:"original_repo_id"`
	ReporterAddress string            `json:"reporter_address"`
	ViolatingURL    string            `json:"violating_url"`
	EvidenceHash    string            `json:"evidence_hash"`
	SimilarityScore int               `json:"similarity_score"`
	Status          string            `json:"status"`
	LedgerState     string            `json:"ledger_state"`
	NoticeReference string            `json:"notice_reference,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ReportedAt      time.Time         `json:"reported_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Job is a durable asynchronous work item. Result and Error are mutually
// exclusive once the job is terminal.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Input     json.RawMessage `json:"input"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AuditEntry records one lifecycle action for the operator audit trail.
type AuditEntry struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type repositoryRow struct {
	ID           int64         `db:"id"`
	LedgerID     sql.NullInt64 `db:"ledger_id"`
	OwnerAddress string        `db:"owner_address"`
	SourceURL    string        `db:"source_url"`
	ContentHash  string        `db:"content_hash"`
	Fingerprint  string        `db:"fingerprint"`
	KeyFeatures  string        `db:"key_features"`
	LicenseType  string        `db:"license_type"`
	IsActive     int           `db:"is_active"`
	LedgerState  string        `db:"ledger_state"`
	Metadata     string        `db:"metadata"`
	RegisteredAt time.Time     `db:"registered_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

func (r repositoryRow) toRepository() Repository {
	repo := Repository{
		ID:           r.ID,
		OwnerAddress: r.OwnerAddress,
		SourceURL:    r.SourceURL,
		ContentHash:  r.ContentHash,
		Fingerprint:  r.Fingerprint,
		KeyFeatures:  decodeStringList(r.KeyFeatures),
		LicenseType:  r.LicenseType,
		IsActive:     r.IsActive != 0,
		LedgerState:  r.LedgerState,
		Metadata:     decodeStringMap(r.Metadata),
		RegisteredAt: r.RegisteredAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LedgerID.Valid {
		id := r.LedgerID.Int64
		repo.LedgerID = &id
	}
	return repo
}

type violationRow struct {
	ID              int64          `db:"id"`
	LedgerID        sql.NullInt64  `db:"ledger_id"`
	OriginalRepoID  int64          `db:"original_repo_id"`
	ReporterAddress string         `db:"reporter_address"`
	ViolatingURL    string         `db:"violating_url"`
	EvidenceHash    string         `db:"evidence_hash"`
	SimilarityScore int            `db:"similarity_score"`
	Status          string         `db:"status"`
	LedgerState     string         `db:"ledger_state"`
	NoticeReference sql.NullString `db:"notice_reference"`
	Metadata        string         `db:"metadata"`
	ReportedAt      time.Time      `db:"reported_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (v violationRow) toViolation() Violation {
	violation := Violation{
		ID:              v.ID,
		OriginalRepoID:  v.OriginalRepoID,
		ReporterAddress: v.ReporterAddress,
		ViolatingURL:    v.ViolatingURL,
		EvidenceHash:    v.EvidenceHash,
		SimilarityScore: v.SimilarityScore,
		Status:          v.Status,
		LedgerState:     v.LedgerState,
		NoticeReference: v.NoticeReference.String,
		Metadata:        decodeStringMap(v.Metadata),
		ReportedAt:      v.ReportedAt.UTC(),
		UpdatedAt:       v.UpdatedAt.UTC(),
	}
	if v.LedgerID.Valid {
		id := v.LedgerID.Int64
		violation.LedgerID = &id
	}
	return violation
}

type jobRow struct {
	ID        string         `db:"id"`
	Type      string         `db:"type"`
	Status    string         `db:"status"`
	Input     string         `db:"input"`
	Result    sql.NullString `db:"result"`
	Error     sql.NullString `db:"error"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (j jobRow) toJob() Job {
	job := Job{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		Input:     json.RawMessage(j.Input),
		Error:     j.Error.String,
		CreatedAt: j.CreatedAt.UTC(),
		UpdatedAt: j.UpdatedAt.UTC(),
	}
	if j.Result.Valid && j.Result.String != "" {
		job.Result = json.RawMessage(j.Result.String)
	}
	return job
}

type auditRow struct {
	ID        int64     `db:"id"`
	JobID     string    `db:"job_id"`
	Action    string    `db:"action"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

func (a auditRow) toEntry() AuditEntry {
	return AuditEntry{
		ID:        a.ID,
		JobID:     a.JobID,
		Action:    a.Action,
		Detail:    a.Detail,
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func encodeStringList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStringMap(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func encodeStringMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}
