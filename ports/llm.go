package ports

import "context"

// TokenUsage is the per-call token spend a completion provider reports.
// TotalTokens is what the run's token budget is debited with.
type TokenUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// Completion is one model response: the raw content string plus the
// usage the provider billed for producing it. Usage may be nil when the
// provider does not report it; callers then skip budget accounting.
type Completion struct {
	Content string
	Usage   *TokenUsage
}

// CompletionClient is the minimal surface the remote explanation tier
// needs from a hosted language-model API: one prompt in, one bounded
// completion out.
type CompletionClient interface {
	Complete(ctx context.Context, model string, prompt string, maxTokens int) (*Completion, error)
}
