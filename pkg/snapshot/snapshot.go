package snapshot

import (
	"time"

	"ai-ragchat-be/pkg/stream"
)

// PipelineSnapshot is the cache-resident state of one streaming exchange.
type PipelineSnapshot struct {
	MessageID         int64              `json:"message_id"`
	ConversationID    string             `json:"conversation_id"`
	SessionID         string             `json:"session_id"`
	UserQuery         string             `json:"user_query"`
	AssistantResponse string             `json:"assistant_response"`
	Steps             []stream.StepEvent `json:"cot_steps"`
	SourcesCount      int                `json:"sources_count"`
	SuggestionsCount  int                `json:"suggestions_count"`
	TotalSteps        int                `json:"total_steps"`
	CompletedSteps    int                `json:"completed_steps"`
	ActiveStep        *string            `json:"active_step"`
	CreatedAt         time.Time          `json:"created_at"`
	LastUpdated       time.Time          `json:"last_updated"`
	ProcessingTimeMs  *float64           `json:"processing_time_ms"`
}

// Clone returns a deep copy so callers never share slices or pointers with
// the cache.
func (s PipelineSnapshot) Clone() PipelineSnapshot {
	out := s
	if s.Steps != nil {
		out.Steps = make([]stream.StepEvent, len(s.Steps))
		copy(out.Steps, s.Steps)
	}
	if s.ActiveStep != nil {
		v := *s.ActiveStep
		out.ActiveStep = &v
	}
	if s.ProcessingTimeMs != nil {
		v := *s.ProcessingTimeMs
		out.ProcessingTimeMs = &v
	}
	return out
}

// NewMessageID derives a temporary message id from the clock. It is never
// reconciled with the persisted row id.
func NewMessageID(now time.Time) int64 {
	return now.UnixMicro()
}
