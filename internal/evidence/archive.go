// File path: internal/evidence/archive.go
package evidence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is one archived line: the bundle plus its hash at append time.
type Record struct {
	Hash       string    `json:"hash"`
	Bundle     Bundle    `json:"bundle"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archive is an append-only JSONL store of evidence bundles. Lines are never
// rewritten; the file is the durable local record behind each evidenceHash.
type Archive struct {
	mu   sync.Mutex
	path string
}

// OpenArchive prepares the archive file at path, creating parent directories
// as needed.
func OpenArchive(path string) (*Archive, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("evidence archive path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve evidence path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}
	file, err := os.OpenFile(abs, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open evidence archive: %w", err)
	}
	file.Close()
	return &Archive{path: abs}, nil
}

// Append hashes the bundle, appends it as one JSONL line, and returns the
// hash.
func (a *Archive) Append(bundle Bundle) (string, error) {
	hash, err := bundle.Hash()
	if err != nil {
		return "", err
	}
	record := Record{Hash: hash, Bundle: bundle, ArchivedAt: time.Now().UTC()}
	line, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode evidence record: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open evidence archive: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("append evidence record: %w", err)
	}
	return hash, nil
}

// Lookup scans the archive for the record with the given hash.
func (a *Archive) Lookup(hash string) (Record, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("open evidence archive: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.Hash == hash {
			return record, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return Record{}, false, fmt.Errorf("scan evidence archive: %w", err)
	}
	return Record{}, false, nil
}
