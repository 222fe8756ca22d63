package keyword

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	titleWeight      = 0.5
	contentWeight    = 0.3
	titlePhraseBonus = 0.3
	bodyPhraseBonus  = 0.15
	proximityBonus   = 0.1
	proximityWindow  = 100

	snippetLength = 300
	snippetLead   = 100
)

var (
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

	stopWords = map[string]struct{}{
		"how": {}, "can": {}, "the": {}, "what": {}, "when": {}, "where": {}, "why": {},
		"is": {}, "in": {}, "to": {}, "a": {}, "an": {}, "and": {}, "or": {},
	}
)

// Keywords extracts the lower-cased query terms used for scoring: word
// tokens longer than two characters that are not stop words.
func Keywords(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// Score rates how relevant an article is to query, in [0, 1].
func Score(query string, article Article) float64 {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return 0
	}

	queryLower := strings.ToLower(query)
	title := strings.ToLower(article.Title)
	content := strings.ToLower(article.Content)

	titleMatches, contentMatches := 0, 0
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			titleMatches++
		}
		if strings.Contains(content, kw) {
			contentMatches++
		}
	}

	n := float64(len(keywords))
	score := float64(titleMatches)/n*titleWeight + float64(contentMatches)/n*contentWeight

	switch {
	case strings.Contains(title, queryLower):
		score += titlePhraseBonus
	case strings.Contains(content, queryLower):
		score += bodyPhraseBonus
	}

	for i := 0; i+1 < len(keywords); i++ {
		first := strings.Index(content, keywords[i])
		if first < 0 || !strings.Contains(content, keywords[i+1]) {
			continue
		}
		second := strings.Index(content[first:], keywords[i+1])
		if second > 0 && second < proximityWindow {
			score += proximityBonus
			break
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// Snippet cuts a window of content around the first query word longer than
// three characters, marking truncated ends with "...".
func Snippet(query, content string) string {
	runes := []rune(content)
	lowerText := strings.ToLower(content)

	first := -1
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		idx := strings.Index(lowerText, w)
		if idx < 0 {
			continue
		}
		pos := min(utf8.RuneCountInString(lowerText[:idx]), len(runes))
		if first < 0 || pos < first {
			first = pos
		}
	}

	if first < 0 {
		end := min(len(runes), snippetLength)
		return string(runes[:end]) + "..."
	}

	start := max(0, first-snippetLead)
	end := min(len(runes), start+snippetLength)
	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return strings.TrimSpace(snippet)
}
