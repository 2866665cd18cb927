package agent

import (
	"fmt"
	"strings"

	"ai-ragchat-be/pkg/stream"
	"ai-ragchat-be/pkg/websearch"
)

const (
	NoDocumentsContext   = "No relevant documents found."
	NoInformationContext = "No relevant information found from internal documents or web search."
	noWebResultsContext  = "No relevant web search results found."

	snippetLength = 200
)

// clip cuts s to n runes and appends an ellipsis when anything was cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// cut cuts s to n runes without a marker.
func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FormatDocument renders one chunk the way the generator sees it.
func FormatDocument(i int, c RetrievedChunk) string {
	title := c.Metadata.Title
	if title == "" {
		title = "Untitled"
	}
	category := c.Metadata.Category
	if category == "" {
		category = "General"
	}
	return fmt.Sprintf("[Document %d] Title: %s | Category: %s\nContent: %s\nRelevance Score: %.3f\n",
		i, title, category, c.Text, c.relevance())
}

func FormatWebResults(results []websearch.Result) string {
	if len(results) == 0 {
		return noWebResultsContext
	}
	parts := []string{"--- Web Search Results ---"}
	for i, r := range results {
		parts = append(parts,
			fmt.Sprintf("[%d] Title: %s", i+1, orNA(r.Title)),
			"URL: "+orNA(r.Href),
			"Snippet: "+orNA(r.Body),
			strings.Repeat("-", 20),
		)
	}
	return strings.Join(parts, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Sources converts the chunks used for generation into client-facing
// source documents.
func Sources(chunks []RetrievedChunk) []stream.SourceDocument {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]stream.SourceDocument, 0, len(chunks))
	for _, c := range chunks {
		title := c.Metadata.Title
		if title == "" {
			title = "Untitled"
		}
		out = append(out, stream.SourceDocument{
			DocumentID:     c.Metadata.DocumentID,
			Title:          title,
			ContentSnippet: cut(c.Text, snippetLength) + "...",
			RelevanceScore: c.relevance(),
			Source:         c.Metadata.Source,
			Category:       c.Metadata.Category,
		})
	}
	return out
}

// FallbackAnswer is used when no generator is configured.
func FallbackAnswer(context string) string {
	if strings.Contains(context, "No relevant documents") || strings.Contains(context, "No relevant information") {
		return "I couldn't find specific information about your question in the healthcare knowledge base. " +
			"Please try rephrasing your question or contact healthcare support for assistance."
	}
	return "Based on the healthcare knowledge base, here's what I found:\n\n" + context +
		"\n\nNote: LLM service is currently unavailable. The above context shows relevant documentation excerpts."
}

func summarizeTop(n int, items []string) string {
	out := strings.Join(items, " | ")
	if n > len(items) {
		out += fmt.Sprintf(" + %d more", n-len(items))
	}
	return out
}
