package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatStreamCompletedPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := NewChatStreamCompleted(StreamSummary{
		ConversationID: "c1",
		Outcome:        "done",
		StepCount:      9,
		Duration:       1500 * time.Millisecond,
	}, at)

	assert.Equal(t, ChatStreamCompleted, e.EventType())
	assert.Equal(t, at, e.Timestamp())
	assert.Equal(t, int64(1500), e.Payload()["duration_ms"])
	assert.Equal(t, 9, e.Payload()["step_count"])
}

func TestFromPayloadUsesOccurredAt(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sent := NewDocumentIndexed("d1", 4, at)
	fallback := time.Now()

	got := FromPayload(DocumentIndexed, sent.Payload(), fallback)
	assert.True(t, at.Equal(got.Timestamp()))

	got = FromPayload(DocumentIndexed, map[string]interface{}{"document_id": "d1"}, fallback)
	assert.Equal(t, fallback, got.Timestamp())
}
