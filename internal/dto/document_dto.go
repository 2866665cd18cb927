package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	Title    string `json:"title" validate:"required,max=300"`
	Content  string `json:"content" validate:"required"`
	Source   string `json:"source,omitempty" validate:"omitempty,max=500"`
	Category string `json:"category,omitempty" validate:"omitempty,max=100"`
	Shared   bool   `json:"shared,omitempty"`
}

type DocumentResponse struct {
	Id         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source,omitempty"`
	Category   string    `json:"category,omitempty"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Shared     bool      `json:"shared"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublishEmbedDocumentMessage is the queue payload for indexing a document.
type PublishEmbedDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
