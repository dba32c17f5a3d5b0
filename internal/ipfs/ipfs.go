// File path: internal/ipfs/ipfs.go
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// Store hosts immutable documents and returns a durable locator.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Config controls the IPFS HTTP API client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// LoadConfig reads storage settings from the environment. An empty endpoint
// means no storage collaborator is configured.
func LoadConfig() (Config, error) {
	cfg := Config{Endpoint: strings.TrimSpace(os.Getenv("IPFS_API_ENDPOINT"))}
	if raw := strings.TrimSpace(os.Getenv("IPFS_HTTP_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse IPFS_HTTP_TIMEOUT: %w", err)
		}
		cfg.Timeout = parsed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

// HTTPStore talks to an IPFS node's HTTP API.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPStore constructs an HTTPStore from the configuration.
func NewHTTPStore(cfg Config) (*HTTPStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("ipfs endpoint required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{baseURL: endpoint, httpClient: &http.Client{Timeout: timeout}}, nil
}

type addResponse struct {
	Hash string `json:"Hash"`
}

// Put uploads the document via /api/v0/add and returns an ipfs:// locator.
func (s *HTTPStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build ipfs upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write ipfs upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish ipfs upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v0/add", &body)
	if err != nil {
		return "", fmt.Errorf("build ipfs request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read ipfs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs node returned status %d", resp.StatusCode)
	}
	var added addResponse
	if err := json.Unmarshal(payload, &added); err != nil {
		return "", fmt.Errorf("decode ipfs response: %w", err)
	}
	if added.Hash == "" {
		return "", errors.New("ipfs node returned empty hash")
	}
	return "ipfs://" + added.Hash, nil
}
