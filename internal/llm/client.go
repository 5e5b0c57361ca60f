package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client is a chat completion client for an OpenAI-compatible API.
// Thread-safe for concurrent use.
type Client struct {
	config *Config
	api    *openai.Client
}

// NewClient creates a new LLM client with the given configuration
//
// Example:
//
//	client, err := llm.NewClient(&llm.Config{
//		APIKey:  os.Getenv("LLM_API_KEY"),
//		APIURL:  "https://api.groq.com/openai/v1",
//		Model:   "llama-3.3-70b-versatile",
//		MaxTokens: 1024,
//		Timeout:   60,
//	})
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	apiConfig.BaseURL = config.APIURL
	apiConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(config.Timeout) * time.Second,
	}

	return &Client{
		config: config,
		api:    openai.NewClientWithConfig(apiConfig),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// ChatCompletion sends messages and returns the first choice.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		messages = append([]Message{{Role: openai.ChatMessageRoleSystem, Content: opts.SystemPrompt}}, messages...)
	}

	request := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    toAPIMessages(messages),
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: float32(c.getTemperature(opts)),
		TopP:        float32(c.getTopP(opts)),
	}

	resp, err := c.api.CreateChatCompletion(ctx, request)
	if err != nil {
		if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("chat completion timed out: %w", err)
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// SimpleChat sends a single user prompt with an optional system prompt and
// returns the assistant's reply.
func (c *Client) SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	opts := NewChatCompletionOptions()
	if systemPrompt != "" {
		opts = opts.WithSystemPrompt(systemPrompt)
	}

	response, err := c.ChatCompletion(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: prompt}}, opts)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.SimpleChat(ctx, prompt, "")
}

// StatusCode extracts the HTTP status from an API error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	ret := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		ret = append(ret, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return ret
}

func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}

func (c *Client) getTopP(opts *ChatCompletionOptions) float64 {
	if opts.TopP >= 0 && opts.TopP <= 1 {
		return opts.TopP
	}
	return c.config.TopP
}
