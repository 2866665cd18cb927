package contract

import (
	"context"

	"ai-ragchat-be/internal/entity"
	"ai-ragchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	Update(ctx context.Context, document *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

// ScoredDocumentChunk is a chunk joined with its document and scored by
// cosine similarity (1.0 = identical).
type ScoredDocumentChunk struct {
	Chunk      *entity.DocumentChunk
	Document   *entity.Document
	Similarity float64
}

// ChunkFilter narrows a similarity search. Zero values match everything.
type ChunkFilter struct {
	UserId   string // own documents plus shared ones
	Category string
}

type DocumentChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.DocumentChunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, filter ChunkFilter) ([]*ScoredDocumentChunk, error)
}
