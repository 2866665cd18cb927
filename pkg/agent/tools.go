package agent

import "strings"

var webSearchTriggers = []string{
	"search internet",
	"latest news",
	"what's new",
	"current events",
	"real-time",
	"search web",
	"google",
	"online",
}

// ToolPlan says which collaborators a query needs. Document retrieval is
// always part of the plan.
type ToolPlan struct {
	WebSearch bool
	Triggers  []string
}

func DecideTools(query string, webSearchEnabled bool) ToolPlan {
	if !webSearchEnabled {
		return ToolPlan{}
	}

	lower := strings.ToLower(query)
	var plan ToolPlan
	for _, kw := range webSearchTriggers {
		if strings.Contains(lower, kw) {
			plan.Triggers = append(plan.Triggers, kw)
		}
	}
	plan.WebSearch = len(plan.Triggers) > 0
	return plan
}

func (p ToolPlan) describe() string {
	var parts []string
	if p.WebSearch {
		triggers := p.Triggers
		if len(triggers) > 3 {
			triggers = triggers[:3]
		}
		parts = append(parts, "Web Search (triggered by: "+strings.Join(triggers, ", ")+")")
	}
	parts = append(parts, "Document Retrieval")
	return "✓ Selected tools: • " + strings.Join(parts, " • ")
}
