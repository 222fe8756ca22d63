package chat

import (
	"regexp"
	"unicode/utf8"
)

const (
	MethodKeyword  = "Keyword Search"
	MethodSemantic = "Semantic Search"
	MethodChain    = "Retrieval QA"
	MethodGeneral  = "General AI"

	SourceKnowledgeBase    = "Support Knowledge Base"
	SourceGeneralKnowledge = "General Knowledge"
)

const (
	keywordMaxArticles    = 3
	semanticResultLimit   = 3
	semanticExcerptLength = 800
	chainExcerptLength    = 200
)

var urlMarker = regexp.MustCompile(`URL: (https?://[^\s]+)`)

// ExtractURLs returns every "URL: <url>" marker in order of appearance.
func ExtractURLs(context string) []string {
	matches := urlMarker.FindAllStringSubmatch(context, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m[1])
	}
	return urls
}

func truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
