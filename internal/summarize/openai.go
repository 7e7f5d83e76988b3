package summarize

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/yt-summer/internal/apperr"
)

// Generator produces text for a system and a user prompt
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIGenerator generates text with a chat completion model. Any endpoint
// speaking the OpenAI API works through the base URL.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a Generator backed by an OpenAI-compatible API
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.Fatal, "generate", errors.New("completion has no choices"))
	}
	return resp.Choices[len(resp.Choices)-1].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if strings.Contains(strings.ToLower(apiErr.Type), "overloaded") || strings.Contains(strings.ToLower(apiErr.Message), "overloaded") {
			return apperr.New(apperr.Overloaded, "generate", err)
		}
		return apperr.New(apperr.FromHTTPStatus(apiErr.HTTPStatusCode), "generate", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperr.New(apperr.FromHTTPStatus(reqErr.HTTPStatusCode), "generate", err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.Fatal, "generate", err)
	}
	return apperr.New(apperr.Transient, "generate", err)
}
