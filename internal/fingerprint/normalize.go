// File path: internal/fingerprint/normalize.go
package fingerprint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL marks a repository URL that cannot be normalized.
var ErrInvalidURL = errors.New("invalid repository url")

// NormalizeURL canonicalizes a repository URL: SSH form rewritten to https,
// scheme and host lowercased, `.git` suffix and trailing slash removed, and
// the path truncated to owner/name. Equivalent spellings of the same
// repository normalize to the same string.
func NormalizeURL(raw string) (normalized, owner, name string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if strings.HasPrefix(trimmed, "git@") {
		rest := strings.TrimPrefix(trimmed, "git@")
		host, path, found := strings.Cut(rest, ":")
		if !found || path == "" {
			return "", "", "", fmt.Errorf("%w: malformed ssh form %q", ErrInvalidURL, raw)
		}
		trimmed = "https://" + host + "/" + path
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", "", "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	segments := splitPath(parsed.Path)
	if len(segments) < 2 {
		return "", "", "", fmt.Errorf("%w: %q has no owner/name path", ErrInvalidURL, raw)
	}
	owner = segments[0]
	name = strings.TrimSuffix(segments[1], ".git")
	if owner == "" || name == "" {
		return "", "", "", fmt.Errorf("%w: %q has no owner/name path", ErrInvalidURL, raw)
	}
	normalized = "https://" + host + "/" + owner + "/" + name
	return normalized, owner, name, nil
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
