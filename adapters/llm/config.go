package llm

import "time"

// Config configures the OpenAI-compatible client used by the remote
// explanation tier.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns the remote tier's defaults: temperature 0 and a
// small token cap, keeping rationale output bounded and repeatable.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Timeout:     10 * time.Second,
		Temperature: 0,
		MaxTokens:   256,
	}
}
