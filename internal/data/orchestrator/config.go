// File path: internal/data/orchestrator/config.go
package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries the wiring settings: store paths, worker sizing, scoring
// thresholds, and the reconciliation loop cadence.
type Config struct {
	DatabasePath string
	EvidencePath string

	Workers   int
	MinScore  int
	ScanLimit int

	SyncInterval   time.Duration
	SyncTimeout    time.Duration
	MaxSyncRetries int
	RetryBackoff   time.Duration
}

// LoadConfig reads orchestrator settings from the environment and applies
// defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		DatabasePath: strings.TrimSpace(os.Getenv("REPOGUARD_DB_PATH")),
		EvidencePath: strings.TrimSpace(os.Getenv("EVIDENCE_PATH")),
	}
	var err error
	if cfg.Workers, err = intEnv("WORKER_COUNT"); err != nil {
		return Config{}, err
	}
	if cfg.MinScore, err = intEnv("MIN_SIMILARITY_SCORE"); err != nil {
		return Config{}, err
	}
	if cfg.ScanLimit, err = intEnv("SCAN_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.SyncInterval, err = durationEnv("SYNC_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.SyncTimeout, err = durationEnv("SYNC_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.MaxSyncRetries, err = intEnv("SYNC_MAX_RETRIES"); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = durationEnv("SYNC_RETRY_BACKOFF"); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = "repoguard.db"
	}
	if c.EvidencePath == "" {
		c.EvidencePath = "evidence/archive.jsonl"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MinScore <= 0 || c.MinScore > 100 {
		c.MinScore = 70
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = 10
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Minute
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 30 * time.Second
	}
	if c.MaxSyncRetries <= 0 {
		c.MaxSyncRetries = 10
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
}

func intEnv(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func durationEnv(name string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
