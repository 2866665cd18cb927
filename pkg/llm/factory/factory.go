package factory

import (
	"fmt"

	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/llm/ollama"
	"ai-ragchat-be/pkg/llm/openai"
)

type Config struct {
	Provider      string // "ollama" or "openai"
	Model         string
	OllamaBaseURL string
	OpenAIKey     string
	OpenAIBaseURL string
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return openai.NewProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
