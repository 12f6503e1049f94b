package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sitegen/ports"
)

// ExplanationProvider adapts a CompletionClient to
// ports.ExplanationProvider: it prompts for strict JSON, validates the
// shape, and reports token usage back to the caller's budget tracker.
type ExplanationProvider struct {
	client    ports.CompletionClient
	model     string
	maxTokens int
	onUsage   func(tokens int)
}

// NewExplanationProvider builds the remote explanation tier. onUsage,
// if non-nil, is called with the total tokens spent on each successful
// call so OperationsService can debit the run's token budget.
func NewExplanationProvider(cfg Config, onUsage func(tokens int)) (*ExplanationProvider, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ExplanationProvider{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens, onUsage: onUsage}, nil
}

type rawExplanation struct {
	PrimaryReason string   `json:"primary_reason"`
	Risks         []string `json:"risks"`
	Actions       []string `json:"actions"`
	Confidence    string   `json:"confidence"`
}

func (p *ExplanationProvider) Explain(ctx context.Context, req ports.ExplanationRequest) (ports.ExplanationResult, error) {
	prompt := buildPrompt(req)

	resp, err := p.client.Complete(ctx, p.model, prompt, p.maxTokens)
	if err != nil {
		return ports.ExplanationResult{}, fmt.Errorf("remote explanation call failed: %w", err)
	}

	var parsed rawExplanation
	content := strings.TrimSpace(resp.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ports.ExplanationResult{}, fmt.Errorf("remote explanation returned invalid JSON: %w", err)
	}
	if parsed.PrimaryReason == "" || len(parsed.PrimaryReason) > 160 {
		return ports.ExplanationResult{}, fmt.Errorf("remote explanation primary_reason invalid length")
	}
	switch parsed.Confidence {
	case "high", "medium", "low":
	default:
		return ports.ExplanationResult{}, fmt.Errorf("remote explanation confidence %q invalid", parsed.Confidence)
	}

	if p.onUsage != nil && resp.Usage != nil {
		p.onUsage(resp.Usage.TotalTokens)
	}

	return ports.ExplanationResult{
		PrimaryReason: parsed.PrimaryReason,
		Risks:         parsed.Risks,
		Actions:       parsed.Actions,
		Confidence:    parsed.Confidence,
	}, nil
}

func buildPrompt(req ports.ExplanationRequest) string {
	return fmt.Sprintf(
		`Return strict JSON only, matching exactly this shape: {"primary_reason": string <= 160 chars, "risks": [string], "actions": [string], "confidence": "high"|"medium"|"low"}. Do not include any other text. Mode: %s. Population: %d. NearestBrandKm: %.3f. CompetitorDensity: %.3f. AnchorScore: %.3f. PerformanceProxy: %.3f. FinalScore: %.3f.`,
		req.Mode, req.Population, req.NearestBrandKm, req.CompetitorDensity, req.AnchorScore, req.PerformanceProxy, req.FinalScore,
	)
}

var _ ports.ExplanationProvider = (*ExplanationProvider)(nil)
