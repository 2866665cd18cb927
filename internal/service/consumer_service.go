package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-ragchat-be/internal/dto"
	"ai-ragchat-be/internal/entity"
	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/internal/repository/specification"
	"ai-ragchat-be/internal/repository/unitofwork"
	"ai-ragchat-be/pkg/embedding"
	"ai-ragchat-be/pkg/events"
	"ai-ragchat-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const consumerModule = "INDEXER"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type ChunkingConfig struct {
	ChunkSize int
	Overlap   int
}

type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	publisher         EventPublisher
	chunking          ChunkingConfig
	logger            logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	publisher EventPublisher,
	chunking ChunkingConfig,
	log logger.ILogger,
) IConsumerService {
	if chunking.ChunkSize <= 0 {
		chunking = ChunkingConfig{ChunkSize: 512, Overlap: 50}
	}
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		publisher:         publisher,
		chunking:          chunking,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// errPermanent marks failures that redelivery cannot fix.
type errPermanent struct{ error }

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Dropping malformed message", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	chunks, err := cs.index(ctx, payload.DocumentId)
	if err != nil {
		details := map[string]interface{}{"document_id": payload.DocumentId.String(), "error": err.Error()}
		if _, ok := err.(errPermanent); ok {
			cs.logger.Error(consumerModule, "Indexing failed", details)
			cs.markFailed(ctx, payload.DocumentId)
			msg.Ack()
			return
		}
		cs.logger.Warn(consumerModule, "Indexing failed, will retry", details)
		msg.Nack()
		return
	}

	cs.logger.Info(consumerModule, "Document indexed", map[string]interface{}{
		"document_id": payload.DocumentId.String(),
		"chunks":      chunks,
	})
	if cs.publisher != nil {
		if err := cs.publisher.Publish(ctx, events.NewDocumentIndexed(payload.DocumentId.String(), chunks, time.Now())); err != nil {
			cs.logger.Warn(consumerModule, "Failed to publish indexed event", map[string]interface{}{"error": err.Error()})
		}
	}
	msg.Ack()
}

func (cs *consumerService) index(ctx context.Context, documentId uuid.UUID) (int, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return 0, err
	}
	if document == nil {
		return 0, errPermanent{fmt.Errorf("document %s not found", documentId)}
	}

	content := document.Content
	if document.Title != "" {
		content = document.Title + "\n\n" + content
	}
	pieces := utils.SplitText(content, cs.chunking.ChunkSize, cs.chunking.Overlap)

	chunks := make([]*entity.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		res, err := cs.embeddingProvider.Generate(ctx, piece, embedding.TaskRetrievalDocument)
		if err != nil {
			return 0, errPermanent{fmt.Errorf("embed chunk %d: %w", i, err)}
		}
		chunks = append(chunks, &entity.DocumentChunk{
			Id:         uuid.New(),
			DocumentId: document.Id,
			ChunkIndex: i,
			Text:       piece,
			Embedding:  res.Embedding.Values,
			CreatedAt:  time.Now(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	if err := uow.DocumentChunkRepository().DeleteByDocumentId(ctx, document.Id); err != nil {
		return 0, err
	}
	if err := uow.DocumentChunkRepository().CreateBulk(ctx, chunks); err != nil {
		return 0, err
	}

	now := time.Now()
	document.Status = entity.DocumentStatusIndexed
	document.ChunkCount = len(chunks)
	document.UpdatedAt = &now
	if err := uow.DocumentRepository().Update(ctx, document); err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (cs *consumerService) markFailed(ctx context.Context, documentId uuid.UUID) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil || document == nil {
		return
	}
	now := time.Now()
	document.Status = entity.DocumentStatusFailed
	document.UpdatedAt = &now
	if err := uow.DocumentRepository().Update(ctx, document); err != nil {
		cs.logger.Error(consumerModule, "Failed to mark document failed", map[string]interface{}{
			"document_id": documentId.String(),
			"error":       err.Error(),
		})
	}
}
