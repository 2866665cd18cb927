package agent

import (
	"regexp"
	"sort"
	"strings"
)

const (
	exactMatchBoost = 0.15
	titleBoost      = 0.2
)

var wordRe = regexp.MustCompile(`\w+`)

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(text, -1) {
		set[w] = struct{}{}
	}
	return set
}

// SemanticWeight is the share of the vector score in the blend. Weak
// embedding matches lean on keywords instead.
func SemanticWeight(score float64) float64 {
	if score > 0.1 {
		return 0.3
	}
	return 0.1
}

// RerankScore blends the vector score with keyword overlap, exact term hits
// and a single title boost.
func RerankScore(query string, chunk RetrievedChunk) float64 {
	queryTerms := termSet(strings.ToLower(query))
	queryOriginal := termSet(query)

	textLower := strings.ToLower(chunk.Text)
	docTerms := termSet(textLower)

	overlap := 0
	for t := range queryTerms {
		if _, ok := docTerms[t]; ok {
			overlap++
		}
	}
	keywordScore := float64(overlap) / float64(max(len(queryTerms), 1))

	exact := 0.0
	for t := range queryOriginal {
		if len(t) > 2 && strings.Contains(textLower, strings.ToLower(t)) {
			exact += exactMatchBoost
		}
	}

	title := 0.0
	titleLower := strings.ToLower(chunkTitle(chunk))
	for t := range queryTerms {
		if len(t) > 2 && strings.Contains(titleLower, t) {
			title = titleBoost
			break
		}
	}

	w := SemanticWeight(chunk.Score)
	return chunk.Score*w + keywordScore*(1-w) + exact + title
}

// Rerank scores every chunk, sorts descending and keeps topN.
func Rerank(query string, chunks []RetrievedChunk, topN int) []RetrievedChunk {
	if len(chunks) == 0 {
		return nil
	}

	out := make([]RetrievedChunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		out[i].RerankScore = RerankScore(query, out[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func chunkTitle(c RetrievedChunk) string {
	if c.Title != "" {
		return c.Title
	}
	return c.Metadata.Title
}
