package llm

import (
	"fmt"
)

// Config holds the configuration for the LLM client.
// Any OpenAI-compatible chat completions endpoint works (Groq, OpenRouter, OpenAI).
//
// Environment Variables (read by internal/config):
// - LLM_API_KEY: API key for the provider (required, GROQ_API_KEY accepted)
// - LLM_API_URL: API base URL (default: https://api.groq.com/openai/v1)
// - LLM_MODEL: Model name (default: llama-3.3-70b-versatile)
// - LLM_MAX_TOKENS: Maximum completion tokens (default: 1024)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.7)
// - LLM_TOP_P: Nucleus sampling (default: 1)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
type Config struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Timeout     int     `json:"timeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}
