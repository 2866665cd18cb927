package service

import (
	"context"

	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/pkg/events"
	natsbus "ai-ragchat-be/pkg/nats"
)

type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler natsbus.EventHandler) error
}

// IAuditService writes every completed stream and indexed document to the
// audit log.
type IAuditService interface {
	Start(ctx context.Context) error
}

type auditService struct {
	subscriber EventSubscriber
	logger     logger.ILogger
}

func NewAuditService(subscriber EventSubscriber, log logger.ILogger) IAuditService {
	return &auditService{subscriber: subscriber, logger: log}
}

func (s *auditService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, events.ChatStreamCompleted, "audit-chat-stream", s.handle); err != nil {
		return err
	}
	return s.subscriber.Subscribe(ctx, events.DocumentIndexed, "audit-document", s.handle)
}

func (s *auditService) handle(_ context.Context, event events.Event) error {
	details := make(map[string]interface{}, len(event.Payload())+1)
	for k, v := range event.Payload() {
		details[k] = v
	}
	details["event_time"] = event.Timestamp()

	if outcome, _ := details["outcome"].(string); outcome == "error" {
		s.logger.Warn("AUDIT", event.EventType(), details)
		return nil
	}
	s.logger.Info("AUDIT", event.EventType(), details)
	return nil
}
