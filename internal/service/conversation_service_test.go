package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-ragchat-be/internal/entity"
	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/internal/repository/contract"
	"ai-ragchat-be/internal/repository/specification"
	"ai-ragchat-be/internal/repository/unitofwork"
	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryConversations struct {
	contract.ConversationRepository
	rows []*entity.Conversation
}

func (m *memoryConversations) Create(_ context.Context, c *entity.Conversation) error {
	m.rows = append(m.rows, c)
	return nil
}

func (m *memoryConversations) Update(context.Context, *entity.Conversation) error { return nil }

func (m *memoryConversations) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	for _, c := range m.rows {
		if matchesConversation(c, specs) {
			return c, nil
		}
	}
	return nil, nil
}

func matchesConversation(c *entity.Conversation, specs []specification.Specification) bool {
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByUserID:
			if c.UserId != v.UserID {
				return false
			}
		case specification.BySessionID:
			if c.SessionId != v.SessionID {
				return false
			}
		case specification.ByID:
			if c.Id != v.ID {
				return false
			}
		}
	}
	return true
}

type memoryMessages struct {
	contract.MessageRepository
	rows []*entity.Message
}

func (m *memoryMessages) Create(_ context.Context, msg *entity.Message) error {
	m.rows = append(m.rows, msg)
	return nil
}

// FindAll mimics Latest: newest first, limited.
func (m *memoryMessages) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	limit := len(m.rows)
	for _, s := range specs {
		if l, ok := s.(specification.Latest); ok && l.N < limit {
			limit = l.N
		}
	}
	out := make([]*entity.Message, 0, limit)
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}

type conversationUow struct {
	unitofwork.UnitOfWork
	conversations *memoryConversations
	messages      *memoryMessages
}

func (u *conversationUow) Begin(context.Context) error { return nil }
func (u *conversationUow) Commit() error               { return nil }
func (u *conversationUow) Rollback() error             { return nil }

func (u *conversationUow) ConversationRepository() contract.ConversationRepository {
	return u.conversations
}
func (u *conversationUow) MessageRepository() contract.MessageRepository { return u.messages }

type conversationFactory struct{ uow *conversationUow }

func (f conversationFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

func newConversationFixture() (IConversationService, *conversationUow) {
	uow := &conversationUow{conversations: &memoryConversations{}, messages: &memoryMessages{}}
	return NewConversationService(conversationFactory{uow: uow}, logger.NopLogger{}), uow
}

func TestResolveCreatesThenReuses(t *testing.T) {
	svc, uow := newConversationFixture()
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "user-1", "session-a", "What does my plan cover for telehealth visits in another province?")
	require.NoError(t, err)
	assert.Equal(t, "session-a", first.SessionId)
	assert.True(t, strings.HasSuffix(first.Title, "..."))

	again, err := svc.Resolve(ctx, "user-1", "session-a", "follow up")
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)

	other, err := svc.Resolve(ctx, "user-2", "session-a", "hi")
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, other.Id)

	fresh, err := svc.Resolve(ctx, "user-1", "", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.SessionId)
	assert.Len(t, uow.conversations.rows, 3)
}

func TestHistoryOldestFirst(t *testing.T) {
	svc, uow := newConversationFixture()
	ctx := context.Background()
	id := uuid.New()

	for i, text := range []string{"q1", "a1", "q2", "a2", "q3"} {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		uow.messages.rows = append(uow.messages.rows, &entity.Message{ConversationId: id, Role: role, Content: text, CreatedAt: time.Now()})
	}

	history, err := svc.History(ctx, id, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, "q3", history[2].Content)

	none, err := svc.History(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveAssistantMessageKeepsArtifacts(t *testing.T) {
	svc, uow := newConversationFixture()
	ctx := context.Background()
	conv, err := svc.Resolve(ctx, "user-1", "s", "hello")
	require.NoError(t, err)

	err = svc.SaveAssistantMessage(ctx, conv.Id, "answer",
		[]stream.SourceDocument{{DocumentID: "d1"}},
		[]stream.StepEvent{{ID: "analyzing"}},
		[]string{"next?"},
	)
	require.NoError(t, err)

	require.Len(t, uow.messages.rows, 1)
	saved := uow.messages.rows[0]
	assert.Equal(t, entity.RoleAssistant, saved.Role)
	assert.Len(t, saved.Sources, 1)
	assert.Len(t, saved.CotSteps, 1)
	assert.Equal(t, []string{"next?"}, saved.Suggestions)
}

func TestShowUnknownConversation(t *testing.T) {
	svc, _ := newConversationFixture()
	_, err := svc.Show(context.Background(), "user-1", "missing")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}
