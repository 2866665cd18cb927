package entity

import (
	"time"

	"ai-ragchat-be/pkg/stream"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	Sources        []stream.SourceDocument
	CotSteps       []stream.StepEvent
	Suggestions    []string
	CreatedAt      time.Time
}
