package stream

import "time"

type StepStatus string

const (
	StatusPending  StepStatus = "pending"
	StatusActive   StepStatus = "active"
	StatusComplete StepStatus = "complete"
	StatusError    StepStatus = "error"
)

type StepType string

const (
	StepAnalyzing         StepType = "analyzing"
	StepWebSearch         StepType = "web_search"
	StepAugmenting        StepType = "augmenting"
	StepSearching         StepType = "searching"
	StepRetrieved         StepType = "retrieved"
	StepReranking         StepType = "reranking"
	StepBuilding          StepType = "building"
	StepAnalyzingDocument StepType = "analyzing_document"
	StepChecking          StepType = "checking"
	StepGenerating        StepType = "generating"
	StepValidating        StepType = "validating"
	StepSuggestions       StepType = "suggestions"
)

// StepTypeInfo describes how the merger treats a step type.
type StepTypeInfo struct {
	// Repeating types get a fresh id per update and never merge.
	Repeating bool
}

// StepTypes is the identity table consulted by Merger. Unknown types are
// treated as singleton (non-repeating) steps.
var StepTypes = map[StepType]StepTypeInfo{
	StepAnalyzing:         {},
	StepWebSearch:         {},
	StepAugmenting:        {},
	StepSearching:         {},
	StepRetrieved:         {},
	StepReranking:         {},
	StepBuilding:          {},
	StepAnalyzingDocument: {Repeating: true},
	StepChecking:          {},
	StepGenerating:        {},
	StepValidating:        {},
	StepSuggestions:       {},
}

func IsRepeating(t StepType) bool {
	return StepTypes[t].Repeating
}

// StepEvent is one display-ready reasoning step. A new value is produced for
// every update; the merger replaces the stored record with the same ID.
type StepEvent struct {
	ID          string     `json:"id"`
	StepType    StepType   `json:"step_type"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
}

// StepUpdate is a raw, partial update fed into the merger.
type StepUpdate struct {
	Type        StepType
	Label       string
	Description string
	Status      StepStatus
	ID          string // optional explicit id
}

// SourceDocument is a reranked document surfaced to the client.
type SourceDocument struct {
	DocumentID     string  `json:"document_id"`
	Title          string  `json:"title"`
	ContentSnippet string  `json:"content_snippet"`
	RelevanceScore float64 `json:"relevance_score"`
	Source         string  `json:"source,omitempty"`
	Category       string  `json:"category,omitempty"`
}
