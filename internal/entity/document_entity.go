package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentStatusPending = "pending"
	DocumentStatusIndexed = "indexed"
	DocumentStatusFailed  = "failed"
)

type Document struct {
	Id         uuid.UUID
	UserId     string // empty for shared documents
	Title      string
	Content    string
	Source     string
	Category   string
	Status     string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}

type DocumentChunk struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	ChunkIndex int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}
