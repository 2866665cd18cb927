package search

import (
	"context"
	"fmt"

	"ai-ragchat-be/internal/repository/contract"
	"ai-ragchat-be/internal/repository/unitofwork"
	"ai-ragchat-be/pkg/agent"
	"ai-ragchat-be/pkg/embedding"
)

// Filter keys understood by VectorRetriever.
const (
	FilterUserID   = "user_id"
	FilterCategory = "category"
)

// VectorRetriever embeds the query and ranks stored chunks by cosine
// similarity in pgvector.
type VectorRetriever struct {
	embeddingProvider embedding.EmbeddingProvider
	repoFactory       unitofwork.RepositoryFactory
}

func NewVectorRetriever(embeddingProvider embedding.EmbeddingProvider, repoFactory unitofwork.RepositoryFactory) *VectorRetriever {
	return &VectorRetriever{
		embeddingProvider: embeddingProvider,
		repoFactory:       repoFactory,
	}
}

func (r *VectorRetriever) Search(ctx context.Context, query string, topK int, threshold float64, filter map[string]string) ([]agent.RetrievedChunk, error) {
	embeddingRes, err := r.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	uow := r.repoFactory.NewUnitOfWork(ctx)
	scored, err := uow.DocumentChunkRepository().SearchSimilarWithScore(
		ctx,
		embeddingRes.Embedding.Values,
		topK,
		threshold,
		contract.ChunkFilter{
			UserId:   filter[FilterUserID],
			Category: filter[FilterCategory],
		},
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	chunks := make([]agent.RetrievedChunk, 0, len(scored))
	for _, s := range scored {
		if s == nil || s.Chunk == nil {
			continue
		}
		meta := agent.ChunkMetadata{DocumentID: s.Chunk.DocumentId.String()}
		if s.Document != nil {
			meta.Title = s.Document.Title
			meta.Category = s.Document.Category
			meta.Source = s.Document.Source
		}
		chunks = append(chunks, agent.RetrievedChunk{
			Text:     s.Chunk.Text,
			Metadata: meta,
			Score:    s.Similarity,
			Title:    meta.Title,
		})
	}
	return chunks, nil
}
