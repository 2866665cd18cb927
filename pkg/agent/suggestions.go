package agent

import (
	"strings"
	"unicode"
)

const (
	minSuggestionLength = 10
	maxSuggestions      = 6
	minSuggestions      = 3
)

var DefaultSuggestions = []string{
	"What healthcare services are available?",
	"How can I access my medical records?",
	"Tell me about preventive care programs",
	"What telehealth options exist?",
}

func defaultSuggestions() []string {
	out := make([]string, len(DefaultSuggestions))
	copy(out, DefaultSuggestions)
	return out
}

// ParseSuggestions turns a model reply into 3 to 6 follow-up questions,
// padding from the defaults.
func ParseSuggestions(reply string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		line = strings.TrimSpace(line)

		if line != "" && unicode.IsDigit(rune(line[0])) {
			head := line
			if len(head) > 3 {
				head = head[:3]
			}
			if strings.Contains(head, ".") {
				line = strings.TrimSpace(line[strings.Index(line, ".")+1:])
			}
		}
		for _, bullet := range []string{"- ", "• ", "* "} {
			if strings.HasPrefix(line, bullet) {
				line = strings.TrimSpace(strings.TrimPrefix(line, bullet))
				break
			}
		}

		if len(line) > minSuggestionLength {
			out = append(out, line)
		}
	}

	if len(out) > maxSuggestions {
		return out[:maxSuggestions]
	}
	if len(out) < minSuggestions {
		out = append(out, DefaultSuggestions[:minSuggestions-len(out)]...)
	}
	return out
}

func suggestionsPrompt(history []string) string {
	return "Based on this conversation about healthcare services:\n\n" +
		strings.Join(history, "\n") +
		"\n\nGenerate 4 relevant follow-up questions that the user might want to ask next. The questions should:\n" +
		"- Be directly related to the current conversation topic\n" +
		"- Help the user explore related healthcare services or get more details\n" +
		"- Be concise and clear\n" +
		"- Be natural conversation continuations\n\n" +
		"Return ONLY the questions, one per line, without numbering or bullet points."
}
