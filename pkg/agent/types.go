package agent

import (
	"context"

	"ai-ragchat-be/pkg/guardrails"
	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/stream"
	"ai-ragchat-be/pkg/websearch"
)

// ChunkMetadata is what the vector store keeps next to each chunk.
type ChunkMetadata struct {
	DocumentID string
	Title      string
	Category   string
	Source     string
}

// RetrievedChunk is one scored hit from the retriever.
type RetrievedChunk struct {
	Text     string
	Metadata ChunkMetadata
	Score    float64
	Title    string

	RerankScore float64
}

// relevance prefers the rerank score once one has been assigned.
func (c RetrievedChunk) relevance() float64 {
	if c.RerankScore != 0 {
		return c.RerankScore
	}
	return c.Score
}

type Retriever interface {
	Search(ctx context.Context, query string, topK int, threshold float64, filter map[string]string) ([]RetrievedChunk, error)
}

type SafetyChecker interface {
	CheckInput(ctx context.Context, text string) (guardrails.InputResult, error)
	CheckOutput(ctx context.Context, text, context string) (guardrails.OutputResult, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

type Config struct {
	TopK             int
	ScoreThreshold   float64
	RerankTopN       int
	MaxHistory       int
	Temperature      float64
	MaxTokens        int
	ModelLabel       string
	WebSearchEnabled bool
}

func DefaultConfig() Config {
	return Config{
		TopK:           10,
		ScoreThreshold: 0.05,
		RerankTopN:     5,
		MaxHistory:     10,
		Temperature:    0.7,
		MaxTokens:      2048,
		ModelLabel:     "configured model",
	}
}

// Request is one user turn.
type Request struct {
	Query   string
	History []llm.Message
	UseRAG  bool
	Filter  map[string]string
}

// Result is what the consumer streams once the runner is finished.
type Result struct {
	Response      string
	Sources       []stream.SourceDocument
	Context       string
	Blocked       bool
	UsedRAG       bool
	UsedWebSearch bool
	DocsFound     int
	DocsUsed      int
}
