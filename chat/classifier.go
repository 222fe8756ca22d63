package chat

import "strings"

// Classifier decides whether a question belongs to the supported product
// domain. Matching is a case-insensitive substring test against a fixed
// vocabulary; an empty vocabulary accepts every question.
type Classifier struct {
	terms []string
}

func NewClassifier(terms []string) *Classifier {
	return &Classifier{terms: normalizePhrases(terms)}
}

func (c *Classifier) IsInDomain(question string) bool {
	if c == nil || len(c.terms) == 0 {
		return true
	}
	return containsAnyPhrase(strings.ToLower(question), c.terms)
}

// EscalationDetector flags answers that read as uncertain.
type EscalationDetector struct {
	phrases []string
}

func NewEscalationDetector(phrases []string) *EscalationDetector {
	return &EscalationDetector{phrases: normalizePhrases(phrases)}
}

func (d *EscalationDetector) ShouldEscalate(answer string) bool {
	if d == nil || len(d.phrases) == 0 {
		return false
	}
	return containsAnyPhrase(strings.ToLower(answer), d.phrases)
}

func normalizePhrases(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func containsAnyPhrase(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
