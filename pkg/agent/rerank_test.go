package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticWeight(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{score: 0.05, want: 0.1},
		{score: 0.1, want: 0.1},
		{score: 0.11, want: 0.3},
		{score: 0.4, want: 0.3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SemanticWeight(tt.score), "score %v", tt.score)
	}
}

func TestRerankScoreTitleBoostAppliedOnce(t *testing.T) {
	query := "telehealth services overview"

	oneTerm := RetrievedChunk{Text: "unrelated", Score: 0.4, Metadata: ChunkMetadata{Title: "Telehealth"}}
	allTerms := RetrievedChunk{Text: "unrelated", Score: 0.4, Metadata: ChunkMetadata{Title: "Telehealth Services Overview"}}
	noTitle := RetrievedChunk{Text: "unrelated", Score: 0.4, Metadata: ChunkMetadata{Title: "Billing"}}

	// 0.4 * 0.3 from the vector score, nothing from keywords
	assert.InDelta(t, 0.12, RerankScore(query, noTitle), 1e-9)
	assert.InDelta(t, 0.32, RerankScore(query, oneTerm), 1e-9)
	assert.InDelta(t, 0.32, RerankScore(query, allTerms), 1e-9)
}

func TestRerankScoreKeywordsAndExactMatches(t *testing.T) {
	// terms: what, is, telehealth. Overlap 2/3, and only "telehealth" is
	// long enough to count as an exact match.
	chunk := RetrievedChunk{Text: "Telehealth is remote care.", Score: 0.05}
	got := RerankScore("What is telehealth", chunk)

	want := 0.05*0.1 + (2.0/3.0)*0.9 + 0.15
	assert.InDelta(t, want, got, 1e-9)
}

func TestRerankSortsAndTruncates(t *testing.T) {
	chunks := []RetrievedChunk{
		{Text: "cardiology ward", Score: 0.9, Metadata: ChunkMetadata{DocumentID: "a"}},
		{Text: "telehealth program for remote visits", Score: 0.2, Metadata: ChunkMetadata{DocumentID: "b"}},
		{Text: "telehealth", Score: 0.3, Metadata: ChunkMetadata{DocumentID: "c", Title: "Telehealth"}},
	}

	out := Rerank("telehealth", chunks, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].Metadata.DocumentID)
	assert.Equal(t, "b", out[1].Metadata.DocumentID)
	assert.GreaterOrEqual(t, out[0].RerankScore, out[1].RerankScore)

	// input untouched
	assert.Zero(t, chunks[0].RerankScore)
	assert.Nil(t, Rerank("anything", nil, 5))
}
