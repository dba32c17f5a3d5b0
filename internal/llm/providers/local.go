// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"errors"
)

// Local is a deterministic offline provider used when no API key is
// configured. It echoes the last message so pipelines stay exercisable.
type Local struct{}

// NewLocal constructs the local stub provider.
func NewLocal() *Local { return &Local{} }

// Name identifies the provider.
func (l *Local) Name() string { return "local" }

// Chat returns a deterministic response derived from the last message.
func (l *Local) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", errors.New("chat requires at least one message")
	}
	return "[local-stub] " + messages[len(messages)-1].Content, nil
}
