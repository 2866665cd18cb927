package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergerCumulativeDescription(t *testing.T) {
	tests := []struct {
		name         string
		active       string
		complete     string
		status       StepStatus
		wantFinal    string
		wantComplete int
	}{
		{name: "both parts", active: "Query: 'telehealth'", complete: "✓ Search complete", status: StatusComplete, wantFinal: "Query: 'telehealth'\n\n✓ Search complete", wantComplete: 1},
		{name: "empty active", active: "", complete: "✓ done", status: StatusComplete, wantFinal: "✓ done", wantComplete: 1},
		{name: "empty complete", active: "started", complete: "", status: StatusComplete, wantFinal: "started", wantComplete: 1},
		{name: "error appends too", active: "Scanning", complete: "⚠️ violation", status: StatusError, wantFinal: "Scanning\n\n⚠️ violation", wantComplete: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMerger()
			m.Update(StepUpdate{Type: StepSearching, Label: "Searching vector database", Description: tt.active, Status: StatusActive})
			ev := m.Update(StepUpdate{Type: StepSearching, Label: "Searching vector database", Description: tt.complete, Status: tt.status})

			assert.Equal(t, "searching", ev.ID)
			assert.Equal(t, tt.wantFinal, ev.Description)

			totals := m.Totals()
			assert.Equal(t, 1, totals.Total)
			assert.Equal(t, tt.wantComplete, totals.Completed)
		})
	}
}

func TestMergerCompleteWithoutActive(t *testing.T) {
	m := NewMerger()
	ev := m.Update(StepUpdate{Type: StepRetrieved, Label: "Retrieved 3 documents", Description: "✓ Found 3", Status: StatusComplete})
	assert.Equal(t, "✓ Found 3", ev.Description)
}

func TestMergerReactivationResetsAccumulator(t *testing.T) {
	m := NewMerger()
	m.Update(StepUpdate{Type: StepAnalyzing, Description: "first", Status: StatusActive})
	m.Update(StepUpdate{Type: StepAnalyzing, Description: "first done", Status: StatusComplete})
	m.Update(StepUpdate{Type: StepAnalyzing, Description: "second", Status: StatusActive})
	ev := m.Update(StepUpdate{Type: StepAnalyzing, Description: "second done", Status: StatusComplete})

	assert.Equal(t, "second\n\nsecond done", ev.Description)
}

func TestMergerPendingPassesThrough(t *testing.T) {
	m := NewMerger()
	m.Update(StepUpdate{Type: StepGenerating, Description: "a", Status: StatusActive})
	ev := m.Update(StepUpdate{Type: StepGenerating, Description: "waiting", Status: StatusPending})
	assert.Equal(t, "waiting", ev.Description)
}

func TestMergerRepeatingTypesGetDistinctIDs(t *testing.T) {
	m := NewMerger()
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		ev := m.Update(StepUpdate{Type: StepAnalyzingDocument, Label: "Analyzing document", Description: "✓ Doc", Status: StatusComplete})
		require.False(t, seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
		assert.Equal(t, i+1, m.Totals().Total)
	}
	assert.Equal(t, "analyzing_document_1", m.Steps()[0].ID)
	assert.Equal(t, "analyzing_document_4", m.Steps()[3].ID)
}

func TestMergerRepeatingDescriptionNotAccumulated(t *testing.T) {
	m := NewMerger()
	m.Update(StepUpdate{Type: StepAnalyzingDocument, Description: "one", Status: StatusActive, ID: "doc"})
	ev := m.Update(StepUpdate{Type: StepAnalyzingDocument, Description: "two", Status: StatusComplete, ID: "doc"})
	assert.Equal(t, "two", ev.Description)
}

func TestMergerExplicitIDWins(t *testing.T) {
	m := NewMerger()
	ev := m.Update(StepUpdate{Type: StepAnalyzingDocument, ID: "custom", Status: StatusActive})
	assert.Equal(t, "custom", ev.ID)
}

func TestMergerUpsertPreservesPosition(t *testing.T) {
	m := NewMerger()
	m.Update(StepUpdate{Type: StepAnalyzing, Status: StatusActive})
	m.Update(StepUpdate{Type: StepAugmenting, Status: StatusActive})
	m.Update(StepUpdate{Type: StepSearching, Status: StatusActive})
	m.Update(StepUpdate{Type: StepAnalyzing, Status: StatusComplete})

	steps := m.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "analyzing", steps[0].ID)
	assert.Equal(t, StatusComplete, steps[0].Status)
	assert.Equal(t, "augmenting", steps[1].ID)
	assert.Equal(t, "searching", steps[2].ID)
}

func TestMergerTotalsActiveStepLastWriteWins(t *testing.T) {
	m := NewMerger()
	m.Update(StepUpdate{Type: StepBuilding, Label: "Building context", Status: StatusActive})
	m.Update(StepUpdate{Type: StepAnalyzingDocument, Label: "Analyzing document: A", Status: StatusComplete})

	totals := m.Totals()
	require.NotNil(t, totals.ActiveStep)
	assert.Equal(t, "Building context", *totals.ActiveStep)
	assert.Equal(t, 1, totals.Completed)

	m.Update(StepUpdate{Type: StepChecking, Label: "Checking input safety", Status: StatusActive})
	totals = m.Totals()
	require.NotNil(t, totals.ActiveStep)
	assert.Equal(t, "Checking input safety", *totals.ActiveStep)

	m.Update(StepUpdate{Type: StepChecking, Label: "Checking input safety", Status: StatusComplete})
	m.Update(StepUpdate{Type: StepBuilding, Label: "Building context", Status: StatusComplete})
	totals = m.Totals()
	assert.Nil(t, totals.ActiveStep)
	assert.Equal(t, 3, totals.Completed)
	assert.Equal(t, 3, totals.Total)
}

func TestMergerCompletedCountAcrossInterleavings(t *testing.T) {
	m := NewMerger()
	types := []StepType{StepAnalyzing, StepSearching, StepReranking}
	for _, st := range types {
		m.Update(StepUpdate{Type: st, Status: StatusActive})
	}
	m.Update(StepUpdate{Type: StepSearching, Status: StatusComplete})
	m.Update(StepUpdate{Type: StepAnalyzing, Status: StatusError})
	m.Update(StepUpdate{Type: StepReranking, Status: StatusComplete})
	m.Update(StepUpdate{Type: StepSearching, Status: StatusActive})

	var want int
	for _, s := range m.Steps() {
		if s.Status == StatusComplete {
			want++
		}
	}
	assert.Equal(t, want, m.Totals().Completed)
	assert.Equal(t, 1, want)
}
