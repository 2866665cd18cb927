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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IDocumentService interface {
	Create(ctx context.Context, userId string, req *dto.CreateDocumentRequest) (*dto.DocumentResponse, error)
	List(ctx context.Context, userId string) ([]*dto.DocumentResponse, error)
}

type documentService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  message.Publisher
	topicName  string
	logger     logger.ILogger
}

func NewDocumentService(uowFactory unitofwork.RepositoryFactory, publisher message.Publisher, topicName string, log logger.ILogger) IDocumentService {
	return &documentService{
		uowFactory: uowFactory,
		publisher:  publisher,
		topicName:  topicName,
		logger:     log,
	}
}

func toDocumentResponse(d *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:         d.Id,
		Title:      d.Title,
		Source:     d.Source,
		Category:   d.Category,
		Status:     d.Status,
		ChunkCount: d.ChunkCount,
		Shared:     d.UserId == "",
		CreatedAt:  d.CreatedAt,
	}
}

func (s *documentService) Create(ctx context.Context, userId string, req *dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	owner := userId
	if req.Shared {
		owner = ""
	}

	document := &entity.Document{
		Id:        uuid.New(),
		UserId:    owner,
		Title:     req.Title,
		Content:   req.Content,
		Source:    req.Source,
		Category:  req.Category,
		Status:    entity.DocumentStatusPending,
		CreatedAt: time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().Create(ctx, document); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	payload, err := json.Marshal(dto.PublishEmbedDocumentMessage{DocumentId: document.Id})
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(s.topicName, msg); err != nil {
		// the row stays pending; a later re-index can pick it up
		s.logger.Error("DOCUMENT", "Failed to queue document for indexing", map[string]interface{}{
			"document_id": document.Id.String(),
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("queue document: %w", err)
	}

	return toDocumentResponse(document), nil
}

func (s *documentService) List(ctx context.Context, userId string) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	documents, err := uow.DocumentRepository().FindAll(ctx,
		specification.VisibleTo{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentResponse, 0, len(documents))
	for _, d := range documents {
		res = append(res, toDocumentResponse(d))
	}
	return res, nil
}
