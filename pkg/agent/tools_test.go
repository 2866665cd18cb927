package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideTools(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		enabled  bool
		wantWeb  bool
		triggers []string
	}{
		{name: "plain question", query: "What is telehealth?", enabled: true},
		{name: "trigger", query: "Any LATEST NEWS on flu vaccines?", enabled: true, wantWeb: true, triggers: []string{"latest news"}},
		{name: "multiple triggers", query: "search web for current events online", enabled: true, wantWeb: true, triggers: []string{"current events", "search web", "online"}},
		{name: "disabled", query: "latest news please", enabled: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := DecideTools(tt.query, tt.enabled)
			assert.Equal(t, tt.wantWeb, plan.WebSearch)
			assert.Equal(t, tt.triggers, plan.Triggers)
		})
	}
}

func TestToolPlanDescribe(t *testing.T) {
	assert.Equal(t, "✓ Selected tools: • Document Retrieval", ToolPlan{}.describe())

	plan := ToolPlan{WebSearch: true, Triggers: []string{"google", "online", "real-time", "search web"}}
	assert.Equal(t, "✓ Selected tools: • Web Search (triggered by: google, online, real-time) • Document Retrieval", plan.describe())
}
