package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sitegen/ports"
)

// NewClient builds the OpenAI-compatible completion client for the
// remote explanation tier.
func NewClient(config Config) (ports.CompletionClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIClient{
		APIKey:      config.APIKey,
		BaseURL:     baseURL,
		Timeout:     config.Timeout,
		Temperature: config.Temperature,
	}, nil
}

// MockClient is a canned completion client for tests.
type MockClient struct {
	Response string // overrides the default explanation payload
	Error    error  // simulates a provider failure
	Calls    int
}

func (m *MockClient) Complete(_ context.Context, model string, _ string, _ int) (*ports.Completion, error) {
	m.Calls++
	if m.Error != nil {
		return nil, m.Error
	}
	content := m.Response
	if content == "" {
		content = `{
			"primary_reason": "High catchment population with no brand presence within 5 km and two anchor clusters nearby.",
			"risks": ["Competitor density may rise as the corridor densifies"],
			"actions": ["Verify footfall at the station anchor before committing"],
			"confidence": "medium"
		}`
	}
	return &ports.Completion{
		Content: content,
		Usage: &ports.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 150,
			TotalTokens:      200,
			Model:            model,
			Provider:         "mock",
		},
	}, nil
}

// OpenAIClient implements ports.CompletionClient against the OpenAI
// chat-completions endpoint. JSON response mode is forced so the
// explanation provider can hold the strict-shape contract.
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, prompt string, maxTokens int) (*ports.Completion, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("missing model")
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You write one-sentence site-selection rationales. Respond with JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.Temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	client := &http.Client{Timeout: c.Timeout}
	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("completion provider http %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("completion response missing choices")
	}

	return &ports.Completion{
		Content: decoded.Choices[0].Message.Content,
		Usage: &ports.TokenUsage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
			Model:            decoded.Model,
			Provider:         "openai",
		},
	}, nil
}

var _ ports.CompletionClient = (*OpenAIClient)(nil)
var _ ports.CompletionClient = (*MockClient)(nil)
