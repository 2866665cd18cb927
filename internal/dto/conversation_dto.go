package dto

import (
	"time"

	"ai-ragchat-be/pkg/stream"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title string `json:"title" validate:"omitempty,max=200"`
}

type UpdateConversationRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type ConversationResponse struct {
	Id        uuid.UUID  `json:"id"`
	SessionId string     `json:"session_id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type MessageResponse struct {
	Id          uuid.UUID               `json:"id"`
	Role        string                  `json:"role"`
	Content     string                  `json:"content"`
	Sources     []stream.SourceDocument `json:"sources,omitempty"`
	CotSteps    []stream.StepEvent      `json:"cot_steps,omitempty"`
	Suggestions []string                `json:"suggestions,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

type ConversationDetailResponse struct {
	ConversationResponse
	Messages []MessageResponse `json:"messages"`
}
