// File path: internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DataShieldAI/repoguard/internal/llm"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

// Runner answers free-form operator questions with repository context pulled
// from the local mirror.
type Runner struct {
	provider llm.Provider
	store    *sqlite.Store
}

// NewRunner constructs a query runner. store may be nil; questions are then
// answered without catalog context.
func NewRunner(provider llm.Provider, store *sqlite.Store) *Runner {
	return &Runner{provider: provider, store: store}
}

// Run answers the question, grounding the reply in the registered
// repositories when a store is available.
func (r *Runner) Run(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question required")
	}
	if r.provider == nil {
		return "", errors.New("no provider configured")
	}
	system := "You are the assistant for a repository protection service. " +
		"You answer questions about registered repositories and reported violations."
	if contextBlock := r.catalogContext(ctx); contextBlock != "" {
		system += "\n\nRegistered repositories:\n" + contextBlock
	}
	reply, err := r.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: question},
	})
	if err != nil {
		return "", fmt.Errorf("agent query: %w", err)
	}
	return reply, nil
}

func (r *Runner) catalogContext(ctx context.Context) string {
	if r.store == nil {
		return ""
	}
	repos, err := r.store.ListRepositories(ctx, "")
	if err != nil || len(repos) == 0 {
		return ""
	}
	lines := make([]string, 0, len(repos))
	for i, repo := range repos {
		if i == 20 {
			break
		}
		state := repo.LedgerState
		if repo.LedgerID != nil {
			state = fmt.Sprintf("ledger id %d", *repo.LedgerID)
		}
		lines = append(lines, fmt.Sprintf("- %s (owner %s, %s)", repo.SourceURL, repo.OwnerAddress, state))
	}
	return strings.Join(lines, "\n")
}
