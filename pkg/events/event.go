package events

import "time"

const (
	ChatStreamCompleted = "CHAT_STREAM_COMPLETED"
	DocumentIndexed     = "DOCUMENT_INDEXED"
)

// Event is anything published on the event bus.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// StreamSummary describes a finished chat stream.
type StreamSummary struct {
	ConversationID   string
	UserID           string
	Outcome          string
	Blocked          bool
	StepCount        int
	SourcesCount     int
	SuggestionsCount int
	ResponseChars    int
	Duration         time.Duration
}

func NewChatStreamCompleted(s StreamSummary, at time.Time) BaseEvent {
	return BaseEvent{
		Type: ChatStreamCompleted,
		Data: map[string]interface{}{
			"conversation_id":   s.ConversationID,
			"user_id":           s.UserID,
			"outcome":           s.Outcome,
			"blocked":           s.Blocked,
			"step_count":        s.StepCount,
			"sources_count":     s.SourcesCount,
			"suggestions_count": s.SuggestionsCount,
			"response_chars":    s.ResponseChars,
			"duration_ms":       s.Duration.Milliseconds(),
			"occurred_at":       at.UTC().Format(time.RFC3339Nano),
		},
		OccurredAt: at,
	}
}

func NewDocumentIndexed(documentID string, chunks int, at time.Time) BaseEvent {
	return BaseEvent{
		Type: DocumentIndexed,
		Data: map[string]interface{}{
			"document_id": documentID,
			"chunk_count": chunks,
			"occurred_at": at.UTC().Format(time.RFC3339Nano),
		},
		OccurredAt: at,
	}
}

// FromPayload rebuilds an event received off the wire. The occurred_at
// field wins over the fallback time when it parses.
func FromPayload(eventType string, data map[string]interface{}, fallback time.Time) BaseEvent {
	at := fallback
	if raw, ok := data["occurred_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			at = parsed
		}
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}
