package mapper

import (
	"testing"
	"time"

	"ai-ragchat-be/internal/entity"
	"ai-ragchat-be/pkg/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageKeepsPipelineArtifacts(t *testing.T) {
	m := NewConversationMapper()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	in := &entity.Message{
		Id:             uuid.New(),
		ConversationId: uuid.New(),
		Role:           entity.RoleAssistant,
		Content:        "Telehealth is remote care.",
		Sources:        []stream.SourceDocument{{DocumentID: "d1", Title: "Telehealth", RelevanceScore: 0.9}},
		CotSteps:       []stream.StepEvent{{ID: "analyzing", StepType: stream.StepAnalyzing, Label: "Analyzing", Status: stream.StatusComplete, Timestamp: ts}},
		Suggestions:    []string{"What devices are supported?"},
	}

	stored := m.MessageToModel(in)
	assert.JSONEq(t, `[{"document_id":"d1","title":"Telehealth","content_snippet":"","relevance_score":0.9}]`, string(stored.Sources))

	out := m.MessageToEntity(stored)
	require.Len(t, out.CotSteps, 1)
	assert.Equal(t, in.CotSteps[0].ID, out.CotSteps[0].ID)
	assert.True(t, ts.Equal(out.CotSteps[0].Timestamp))
	assert.Equal(t, in.Suggestions, out.Suggestions)
}

func TestUserMessageLeavesColumnsNull(t *testing.T) {
	stored := NewConversationMapper().MessageToModel(&entity.Message{Role: entity.RoleUser, Content: "hi"})
	assert.Nil(t, stored.Sources)
	assert.Nil(t, stored.CotSteps)
	assert.Nil(t, stored.Suggestions)
}

func TestConversationSoftDeleteFlag(t *testing.T) {
	m := NewConversationMapper()
	stored := m.ConversationToModel(&entity.Conversation{SessionId: "s1", IsDeleted: true})
	assert.True(t, stored.DeletedAt.Valid)
	assert.True(t, m.ConversationToEntity(stored).IsDeleted)
}
