package dto

import "ai-ragchat-be/pkg/stream"

type HistoryMessageDTO struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

type ChatRequest struct {
	Message             string              `json:"message" validate:"required,max=4000"`
	SessionId           string              `json:"session_id,omitempty" validate:"omitempty,max=128"`
	ConversationHistory []HistoryMessageDTO `json:"conversation_history,omitempty" validate:"omitempty,max=50,dive"`
	UseRAG              *bool               `json:"use_rag,omitempty"`
	Category            string              `json:"category,omitempty"`
}

// RAGEnabled defaults to true when use_rag is omitted.
func (r ChatRequest) RAGEnabled() bool {
	return r.UseRAG == nil || *r.UseRAG
}

type ChatMetadata struct {
	Blocked       bool   `json:"blocked"`
	UsedRAG       bool   `json:"used_rag"`
	UsedWebSearch bool   `json:"used_web_search"`
	DocsFound     int    `json:"docs_found"`
	DocsUsed      int    `json:"docs_used"`
	StepCount     int    `json:"step_count"`
	Model         string `json:"model"`
}

type ChatResponse struct {
	Response    string                  `json:"response"`
	SessionId   string                  `json:"session_id"`
	Sources     []stream.SourceDocument `json:"sources"`
	Suggestions []string                `json:"suggestions"`
	CotSteps    []stream.StepEvent      `json:"cot_steps"`
	Metadata    ChatMetadata            `json:"metadata"`
}

type CacheStatsResponse struct {
	CacheStats  CacheStats `json:"cache_stats"`
	Description string     `json:"description"`
}

type CacheStats struct {
	CachedSubjects int `json:"cached_subjects"`
}
