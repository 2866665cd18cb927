package openai

import (
	"context"
	"errors"
	"fmt"

	"ai-ragchat-be/pkg/llm"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	client    sdk.Client
	modelName string
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(apiKey, baseURL, modelName string) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Provider{
		client:    sdk.NewClient(opts...),
		modelName: modelName,
	}
}

func toParams(history []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case llm.RoleAssistant, "model":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resolved := llm.Apply(llm.Options{Temperature: 0.7, Model: p.modelName}, opts...)

	params := sdk.ChatCompletionNewParams{
		Messages:    toParams(history),
		Model:       sdk.ChatModel(resolved.Model),
		Temperature: sdk.Float(resolved.Temperature),
	}
	if resolved.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(resolved.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
