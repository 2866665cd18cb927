package nats

import (
	"testing"

	"ai-ragchat-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubjectRoundTrip(t *testing.T) {
	for _, eventType := range []string{events.ChatStreamCompleted, events.DocumentIndexed} {
		subject := Subject(eventType)
		assert.Contains(t, subject, "ragchat.")
		assert.Equal(t, eventType, EventType(subject))
	}
}
