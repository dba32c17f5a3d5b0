// File path: internal/ledger/gateway.go
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DataShieldAI/repoguard/internal/common"
)

// GatewayConfig controls the HTTP adapter to the ledger signing gateway.
type GatewayConfig struct {
	Endpoint        string
	AgentAddress    string
	Timeout         time.Duration
	ConfirmAttempts int
	ConfirmBackoff  time.Duration
}

// LoadGatewayConfig reads the gateway settings from the environment.
func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := GatewayConfig{}
	cfg.Endpoint = strings.TrimSpace(os.Getenv("LEDGER_ENDPOINT"))
	cfg.AgentAddress = strings.TrimSpace(os.Getenv("LEDGER_AGENT_ADDRESS"))
	if raw := strings.TrimSpace(os.Getenv("LEDGER_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return GatewayConfig{}, fmt.Errorf("parse LEDGER_TIMEOUT: %w", err)
		}
		cfg.Timeout = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("LEDGER_CONFIRM_ATTEMPTS")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return GatewayConfig{}, fmt.Errorf("parse LEDGER_CONFIRM_ATTEMPTS: %w", err)
		}
		cfg.ConfirmAttempts = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("LEDGER_CONFIRM_BACKOFF")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return GatewayConfig{}, fmt.Errorf("parse LEDGER_CONFIRM_BACKOFF: %w", err)
		}
		cfg.ConfirmBackoff = parsed
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *GatewayConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ConfirmAttempts <= 0 {
		c.ConfirmAttempts = 5
	}
	if c.ConfirmBackoff <= 0 {
		c.ConfirmBackoff = 2 * time.Second
	}
}

// Gateway is an HTTP Client implementation over a signing gateway whose REST
// surface mirrors the ledger operations one-to-one. A write that times out
// returns ErrUnconfirmed, never success.
type Gateway struct {
	baseURL      string
	agentAddress string
	httpClient   *http.Client
	attempts     int
	backoff      time.Duration
}

// NewGateway constructs a Gateway from the provided configuration.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint required")
	}
	cfg.applyDefaults()
	return &Gateway{
		baseURL:      endpoint,
		agentAddress: cfg.AgentAddress,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		attempts:     cfg.ConfirmAttempts,
		backoff:      cfg.ConfirmBackoff,
	}, nil
}

// AgentAddress returns the privileged agent address the gateway signs with.
func (g *Gateway) AgentAddress() string {
	return g.agentAddress
}

type writeResponse struct {
	ID          int64  `json:"id"`
	Transaction string `json:"transaction"`
	Reason      string `json:"reason"`
}

type transactionResponse struct {
	State  string `json:"state"`
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// Register submits a registration write and waits for confirmation.
func (g *Gateway) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	return g.submitWrite(ctx, "/v1/repositories", req)
}

// ReportViolation submits a violation report write and waits for confirmation.
func (g *Gateway) ReportViolation(ctx context.Context, req ReportRequest) (int64, error) {
	if req.ReporterAddress == "" {
		req.ReporterAddress = g.agentAddress
	}
	return g.submitWrite(ctx, "/v1/violations", req)
}

// UpdateStatus submits a status transition for a ledger violation.
func (g *Gateway) UpdateStatus(ctx context.Context, violationID int64, status Status, reference, callerAddress string) error {
	if callerAddress == "" {
		callerAddress = g.agentAddress
	}
	payload := map[string]interface{}{
		"status":         int(status),
		"reference":      reference,
		"caller_address": callerAddress,
	}
	_, err := g.submitWrite(ctx, fmt.Sprintf("/v1/violations/%d/status", violationID), payload)
	return err
}

func (g *Gateway) submitWrite(ctx context.Context, path string, payload interface{}) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode ledger write: %w", err)
	}
	status, data, err := g.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var resp writeResponse
	switch status {
	case http.StatusOK, http.StatusCreated:
		if err := json.Unmarshal(data, &resp); err != nil {
			return 0, fmt.Errorf("decode ledger write response: %w", err)
		}
		return resp.ID, nil
	case http.StatusAccepted:
		if err := json.Unmarshal(data, &resp); err != nil {
			return 0, fmt.Errorf("decode ledger write response: %w", err)
		}
		return g.awaitConfirmation(ctx, resp.Transaction)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		json.Unmarshal(data, &resp)
		if resp.Reason != "" {
			return 0, fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
		}
		return 0, ErrRejected
	case http.StatusNotFound:
		return 0, ErrNotFound
	default:
		return 0, fmt.Errorf("%w: gateway returned status %d", ErrUnavailable, status)
	}
}

// awaitConfirmation polls the transaction until it is sealed or rejected,
// backing off exponentially. Exhausting the attempts yields ErrUnconfirmed;
// the transaction may still land and the reconciler re-checks later.
func (g *Gateway) awaitConfirmation(ctx context.Context, transaction string) (int64, error) {
	if transaction == "" {
		return 0, ErrUnconfirmed
	}
	backoff := g.backoff
	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("%w: %v", ErrUnconfirmed, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		status, data, err := g.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(transaction), nil)
		if err != nil {
			common.Logger().Warn("ledger: confirmation poll failed",
				"transaction", transaction, "attempt", attempt+1, "error", err)
			continue
		}
		if status != http.StatusOK {
			continue
		}
		var resp transactionResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		switch resp.State {
		case "sealed":
			return resp.ID, nil
		case "rejected":
			if resp.Reason != "" {
				return 0, fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
			}
			return 0, ErrRejected
		}
	}
	return 0, fmt.Errorf("%w: transaction %s not sealed after %d polls", ErrUnconfirmed, transaction, g.attempts)
}

// GetByHash looks up a registration by content hash.
func (g *Gateway) GetByHash(ctx context.Context, contentHash string) (Repository, error) {
	var repo Repository
	if err := g.getJSON(ctx, "/v1/repositories/hash/"+url.PathEscape(contentHash), &repo); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// GetByLedgerID looks up a registration by ledger id.
func (g *Gateway) GetByLedgerID(ctx context.Context, id int64) (Repository, error) {
	var repo Repository
	if err := g.getJSON(ctx, fmt.Sprintf("/v1/repositories/%d", id), &repo); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// UserRepositories lists the registrations owned by an address.
func (g *Gateway) UserRepositories(ctx context.Context, ownerAddress string) ([]Repository, error) {
	var repos []Repository
	if err := g.getJSON(ctx, "/v1/owners/"+url.PathEscape(ownerAddress)+"/repositories", &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// RepositoryViolations lists the violations recorded against a registration.
func (g *Gateway) RepositoryViolations(ctx context.Context, repoID int64) ([]Violation, error) {
	var violations []Violation
	if err := g.getJSON(ctx, fmt.Sprintf("/v1/repositories/%d/violations", repoID), &violations); err != nil {
		return nil, err
	}
	return violations, nil
}

func (g *Gateway) getJSON(ctx context.Context, path string, out interface{}) error {
	status, data, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch status {
	case http.StatusOK:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode ledger response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: gateway returned status %d", ErrUnavailable, status)
	}
}

func (g *Gateway) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build ledger request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read ledger response: %w", err)
	}
	return resp.StatusCode, data, nil
}
