package enrich

import (
	"strings"
	"unicode"
)

// DefaultTopic is used when a title yields no usable keyword.
const DefaultTopic = "finance"

const maxTopicTokens = 3

// stopWords never make it into a topic. Tokens of three letters or fewer
// are dropped separately, so only longer words need listing.
var stopWords = map[string]bool{
	"about": true, "after": true, "stock": true, "market": true, "markets": true,
	"amid": true, "with": true, "from": true, "that": true, "this": true,
	"will": true, "into": true, "over": true, "their": true, "there": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"says": true, "said": true, "than": true, "them": true, "they": true,
	"have": true, "been": true, "were": true, "more": true, "most": true,
	"some": true, "could": true, "would": true, "should": true, "just": true,
	"also": true, "back": true, "before": true, "amongst": true, "among": true,
	"inflation": true, "news": true, "report": true, "update": true, "today": true,
	"week": true, "year": true, "still": true, "these": true, "those": true,
}

// ExtractTopic derives a short search phrase from an article title. Tokens
// are compared in lower case with punctuation removed; the first three
// that survive the stop-word and length filters are returned in their
// original casing. Titles with no such token yield DefaultTopic.
func ExtractTopic(title string) string {
	tokens := make([]string, 0, maxTopicTokens)
	for _, word := range strings.Fields(title) {
		token := stripPunct(word)
		lower := strings.ToLower(token)
		if len([]rune(lower)) <= 3 || stopWords[lower] {
			continue
		}
		tokens = append(tokens, token)
		if len(tokens) == maxTopicTokens {
			break
		}
	}
	if len(tokens) == 0 {
		return DefaultTopic
	}
	return strings.Join(tokens, " ")
}

func stripPunct(word string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, word)
}
