// File path: internal/ledger/gateway_test.go
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	gateway, err := NewGateway(GatewayConfig{
		Endpoint:        server.URL,
		AgentAddress:    "0xagent",
		Timeout:         2 * time.Second,
		ConfirmAttempts: 3,
		ConfirmBackoff:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gateway
}

func TestRegisterImmediateConfirmation(t *testing.T) {
	gateway := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/repositories" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ContentHash == "" {
			t.Fatalf("missing content hash")
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 42})
	}))
	id, err := gateway.Register(context.Background(), RegisterRequest{
		OwnerAddress: "0xowner",
		SourceURL:    "https://github.com/owner/repo",
		ContentHash:  "abc",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != 42 {
		t.Fatalf("Register id = %d, want 42", id)
	}
}

func TestRegisterPollsUntilSealed(t *testing.T) {
	var polls int32
	gateway := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/repositories":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"transaction": "tx-1"})
		case "/v1/transactions/tx-1":
			if atomic.AddInt32(&polls, 1) < 2 {
				json.NewEncoder(w).Encode(map[string]interface{}{"state": "pending"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"state": "sealed", "id": 7})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	id, err := gateway.Register(context.Background(), RegisterRequest{ContentHash: "abc"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != 7 {
		t.Fatalf("Register id = %d, want 7", id)
	}
	if atomic.LoadInt32(&polls) < 2 {
		t.Fatalf("expected at least two polls, got %d", polls)
	}
}

func TestRegisterRejected(t *testing.T) {
	gateway := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{"reason": "duplicate hash"})
	}))
	_, err := gateway.Register(context.Background(), RegisterRequest{ContentHash: "abc"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Register error = %v, want ErrRejected", err)
	}
}

func TestRegisterUnconfirmedAfterExhaustedPolls(t *testing.T) {
	gateway := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/repositories":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"transaction": "tx-slow"})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"state": "pending"})
		}
	}))
	_, err := gateway.Register(context.Background(), RegisterRequest{ContentHash: "abc"})
	if !errors.Is(err, ErrUnconfirmed) {
		t.Fatalf("Register error = %v, want ErrUnconfirmed", err)
	}
}

func TestGetByHashNotFound(t *testing.T) {
	gateway := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	if _, err := gateway.GetByHash(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByHash error = %v, want ErrNotFound", err)
	}
}

func TestUnreachableGatewayIsUnavailable(t *testing.T) {
	gateway, err := NewGateway(GatewayConfig{
		Endpoint:       "http://127.0.0.1:1",
		Timeout:        200 * time.Millisecond,
		ConfirmBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	if _, err := gateway.GetByHash(context.Background(), "abc"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("GetByHash error = %v, want ErrUnavailable", err)
	}
}

func TestUpdateStatusUsesAgentAddressByDefault(t *testing.T) {
	gateway := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/violations/9/status" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["caller_address"] != "0xagent" {
			t.Fatalf("caller_address = %v, want 0xagent", body["caller_address"])
		}
		if body["status"] != float64(StatusVerified) {
			t.Fatalf("status = %v, want %d", body["status"], StatusVerified)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 9})
	}))
	if err := gateway.UpdateStatus(context.Background(), 9, StatusVerified, "", ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}
