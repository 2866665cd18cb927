package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-ragchat-be/internal/dto"
	"ai-ragchat-be/internal/entity"
	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/internal/repository/specification"
	"ai-ragchat-be/internal/repository/unitofwork"
	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/stream"

	"github.com/google/uuid"
)

type notFoundError string

func (e notFoundError) Error() string  { return string(e) }
func (e notFoundError) NotFound() bool { return true }

var ErrConversationNotFound error = notFoundError("conversation not found")

const titleLength = 60

type IConversationService interface {
	List(ctx context.Context, userId string) ([]*dto.ConversationResponse, error)
	Create(ctx context.Context, userId string, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	Show(ctx context.Context, userId, sessionId string) (*dto.ConversationDetailResponse, error)
	Rename(ctx context.Context, userId, sessionId string, req *dto.UpdateConversationRequest) (*dto.ConversationResponse, error)
	Delete(ctx context.Context, userId, sessionId string) error

	// Resolve finds or creates the conversation behind a session id. An empty
	// session id starts a new conversation.
	Resolve(ctx context.Context, userId, sessionId, firstMessage string) (*entity.Conversation, error)
	History(ctx context.Context, conversationId uuid.UUID, limit int) ([]llm.Message, error)
	SaveUserMessage(ctx context.Context, conversationId uuid.UUID, text string) error
	SaveAssistantMessage(ctx context.Context, conversationId uuid.UUID, text string, sources []stream.SourceDocument, steps []stream.StepEvent, suggestions []string) error
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IConversationService {
	return &conversationService{uowFactory: uowFactory, logger: log}
}

func toConversationResponse(c *entity.Conversation) *dto.ConversationResponse {
	return &dto.ConversationResponse{
		Id:        c.Id,
		SessionId: c.SessionId,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func titleFrom(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if message == "" {
		return "New conversation"
	}
	runes := []rune(message)
	if len(runes) > titleLength {
		return string(runes[:titleLength]) + "..."
	}
	return message
}

func (s *conversationService) List(ctx context.Context, userId string) ([]*dto.ConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		res = append(res, toConversationResponse(c))
	}
	return res, nil
}

func (s *conversationService) Create(ctx context.Context, userId string, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New conversation"
	}

	conversation := &entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		SessionId: uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return toConversationResponse(conversation), nil
}

func (s *conversationService) find(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId string) (*entity.Conversation, error) {
	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByUserID{UserID: userId},
		specification.BySessionID{SessionID: sessionId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *conversationService) Show(ctx context.Context, userId, sessionId string) (*dto.ConversationDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := s.find(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindAll(ctx, specification.ByConversationID{ConversationID: conversation.Id})
	if err != nil {
		return nil, err
	}

	res := &dto.ConversationDetailResponse{
		ConversationResponse: *toConversationResponse(conversation),
		Messages:             make([]dto.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, dto.MessageResponse{
			Id:          m.Id,
			Role:        m.Role,
			Content:     m.Content,
			Sources:     m.Sources,
			CotSteps:    m.CotSteps,
			Suggestions: m.Suggestions,
			CreatedAt:   m.CreatedAt,
		})
	}
	return res, nil
}

func (s *conversationService) Rename(ctx context.Context, userId, sessionId string, req *dto.UpdateConversationRequest) (*dto.ConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := s.find(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	conversation.Title = strings.TrimSpace(req.Title)
	conversation.UpdatedAt = &now
	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		return nil, err
	}
	return toConversationResponse(conversation), nil
}

func (s *conversationService) Delete(ctx context.Context, userId, sessionId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := s.find(ctx, uow, userId, sessionId)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().DeleteByConversationId(ctx, conversation.Id); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, conversation.Id); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *conversationService) Resolve(ctx context.Context, userId, sessionId, firstMessage string) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if sessionId != "" {
		conversation, err := uow.ConversationRepository().FindOne(ctx,
			specification.ByUserID{UserID: userId},
			specification.BySessionID{SessionID: sessionId},
		)
		if err != nil {
			return nil, err
		}
		if conversation != nil {
			return conversation, nil
		}
	} else {
		sessionId = uuid.NewString()
	}

	conversation := &entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		SessionId: sessionId,
		Title:     titleFrom(firstMessage),
		CreatedAt: time.Now(),
	}
	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Info("CONVERSATION", "Conversation created", map[string]interface{}{
		"conversation_id": conversation.Id.String(),
		"session_id":      sessionId,
	})
	return conversation, nil
}

// History returns the newest limit messages, oldest first.
func (s *conversationService) History(ctx context.Context, conversationId uuid.UUID, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.Latest{N: limit},
	)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		role := llm.RoleUser
		if messages[i].Role == entity.RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: messages[i].Content})
	}
	return history, nil
}

func (s *conversationService) SaveUserMessage(ctx context.Context, conversationId uuid.UUID, text string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().Create(ctx, &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversationId,
		Role:           entity.RoleUser,
		Content:        text,
		CreatedAt:      time.Now(),
	})
}

func (s *conversationService) SaveAssistantMessage(ctx context.Context, conversationId uuid.UUID, text string, sources []stream.SourceDocument, steps []stream.StepEvent, suggestions []string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	err := uow.MessageRepository().Create(ctx, &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversationId,
		Role:           entity.RoleAssistant,
		Content:        text,
		Sources:        sources,
		CotSteps:       steps,
		Suggestions:    suggestions,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return err
	}
	if conversation != nil {
		now := time.Now()
		conversation.UpdatedAt = &now
		if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
			return err
		}
	}
	return uow.Commit()
}
