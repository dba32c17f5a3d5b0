// File path: internal/llm/llm.go
package llm

import (
	"context"
	"os"
	"strings"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/llm/providers"
)

// Message is a single chat turn.
type Message = providers.Message

// Provider abstracts the AI collaborator. Implementations must be safe for
// concurrent use.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// NewProvider selects a provider from the environment: OpenAI when an API
// key is configured, otherwise the deterministic local stub.
func NewProvider() Provider {
	logger := common.Logger()
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		provider := providers.NewOpenAI(key)
		logger.Info("llm: provider selected", "provider", provider.Name())
		return provider
	}
	logger.Info("llm: no API key configured, using local provider")
	return providers.NewLocal()
}
