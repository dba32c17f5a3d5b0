// File path: internal/github/client.go
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when the hosting provider has no such repository.
var ErrNotFound = errors.New("repository not found")

// Metadata describes a hosted repository at fetch time.
type Metadata struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	Stars         int       `json:"stars"`
	Size          int       `json:"size"`
	DefaultBranch string    `json:"default_branch"`
	CreatedAt     time.Time `json:"created_at"`
	PushedAt      time.Time `json:"pushed_at"`
	TopFiles      []string  `json:"top_files"`
}

// StateMarker identifies the repository content state used in the content
// hash. Two fetches of an unchanged repository yield the same marker.
func (m Metadata) StateMarker() string {
	return m.PushedAt.UTC().Format(time.RFC3339)
}

// Candidate is a search hit considered for similarity scoring.
type Candidate struct {
	URL         string `json:"url"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
}

// Client is the hosting-provider surface the pipelines depend on.
type Client interface {
	Metadata(ctx context.Context, owner, name string) (*Metadata, error)
	SearchRepositories(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Config controls the HTTP hosting client.
type Config struct {
	Token    string
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// LoadConfig reads hosting client settings from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		Token:    strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		Endpoint: strings.TrimSpace(os.Getenv("GITHUB_API_ENDPOINT")),
	}
	if raw := strings.TrimSpace(os.Getenv("GITHUB_HTTP_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse GITHUB_HTTP_TIMEOUT: %w", err)
		}
		cfg.Timeout = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("GITHUB_CACHE_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse GITHUB_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = parsed
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://api.github.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

type cachedMetadata struct {
	meta    *Metadata
	expires time.Time
}

// HTTPClient talks to the hosting provider's REST API with a small TTL cache
// over metadata lookups.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	ttl        time.Duration

	mu    sync.Mutex
	cache map[string]cachedMetadata
}

// NewHTTPClient constructs an HTTPClient from the provided configuration.
func NewHTTPClient(cfg Config) *HTTPClient {
	cfg.applyDefaults()
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		ttl:        cfg.CacheTTL,
		cache:      make(map[string]cachedMetadata),
	}
}

type repoResponse struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Size        int    `json:"size"`
	Branch      string `json:"default_branch"`
	HTMLURL     string `json:"html_url"`
	CreatedAt   string `json:"created_at"`
	PushedAt    string `json:"pushed_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Metadata fetches repository metadata, serving recent lookups from cache.
func (c *HTTPClient) Metadata(ctx context.Context, owner, name string) (*Metadata, error) {
	key := owner + "/" + name
	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.meta, nil
	}
	c.mu.Unlock()

	var repo repoResponse
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	if err := c.getJSON(ctx, path, &repo); err != nil {
		return nil, err
	}
	meta := &Metadata{
		Owner:         repo.Owner.Login,
		Name:          repo.Name,
		FullName:      repo.FullName,
		Description:   repo.Description,
		Language:      repo.Language,
		Stars:         repo.Stars,
		Size:          repo.Size,
		DefaultBranch: repo.Branch,
		CreatedAt:     parseTime(repo.CreatedAt),
		PushedAt:      parseTime(repo.PushedAt),
	}
	if files, err := c.topFiles(ctx, owner, name, meta.DefaultBranch); err == nil {
		meta.TopFiles = files
	}

	c.mu.Lock()
	c.cache[key] = cachedMetadata{meta: meta, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return meta, nil
}

type contentEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c *HTTPClient) topFiles(ctx context.Context, owner, name, branch string) ([]string, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/", url.PathEscape(owner), url.PathEscape(name))
	if branch != "" {
		path += "?ref=" + url.QueryEscape(branch)
	}
	var entries []contentEntry
	if err := c.getJSON(ctx, path, &entries); err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == "file" {
			files = append(files, entry.Name)
		}
		if len(files) >= 20 {
			break
		}
	}
	return files, nil
}

type searchResponse struct {
	Items []repoResponse `json:"items"`
}

// SearchRepositories runs a bounded repository search.
func (c *HTTPClient) SearchRepositories(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	path := "/search/repositories?q=" + url.QueryEscape(query) +
		"&per_page=" + strconv.Itoa(limit) + "&sort=stars&order=desc"
	var resp searchResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		candidates = append(candidates, Candidate{
			URL:         item.HTMLURL,
			FullName:    item.FullName,
			Description: item.Description,
			Language:    item.Language,
			Stars:       item.Stars,
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build hosting request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hosting request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read hosting response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode hosting response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("hosting API returned status %d", resp.StatusCode)
	}
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
