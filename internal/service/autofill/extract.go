package autofill

import (
	"regexp"
	"strings"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

var (
	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	longDatePattern  = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`)
	numberPattern    = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)
	emailPattern     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

var affirmativeWords = []string{"yes", "confirmed", "approved", "has ", "is covered", "applicable"}

// extractValue pulls a candidate value for the field out of a retrieved
// chunk. The conformance score reports how well the value matches the
// declared field type: 1.0 for a format match, lower for weaker evidence,
// 0 when nothing usable was found.
func extractValue(fieldType models.FieldType, fieldName, text string) (string, float64) {
	switch fieldType {
	case models.FieldDate:
		for _, p := range []*regexp.Regexp{isoDatePattern, slashDatePattern, longDatePattern} {
			if m := p.FindString(text); m != "" {
				return m, 1.0
			}
		}
		return "", 0
	case models.FieldNumber:
		if m := numberPattern.FindString(text); m != "" {
			return m, 1.0
		}
		return "", 0
	case models.FieldEmail:
		if m := emailPattern.FindString(text); m != "" {
			return m, 1.0
		}
		return "", 0
	case models.FieldCheckbox:
		lower := strings.ToLower(text)
		for _, w := range affirmativeWords {
			if strings.Contains(lower, w) {
				return "x", 1.0
			}
		}
		return "", 0
	default:
		return extractSentence(fieldName, text)
	}
}

// extractSentence picks the sentence most related to the field name, scored
// by shared label tokens. Ties go to the earlier sentence so extraction is
// deterministic.
func extractSentence(fieldName, text string) (string, float64) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", 0
	}

	tokens := labelTokens(fieldName)
	best, bestScore := sentences[0], 0
	for _, sentence := range sentences {
		score := 0
		lower := strings.ToLower(sentence)
		for _, token := range tokens {
			if strings.Contains(lower, token) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sentence, score
		}
	}

	value := strings.TrimSpace(best)
	if runes := []rune(value); len(runes) > 200 {
		value = strings.TrimSpace(string(runes[:200]))
	}
	if value == "" {
		return "", 0
	}
	if bestScore > 0 {
		return value, 1.0
	}
	return value, 0.5
}

func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				sentences = append(sentences, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func labelTokens(fieldName string) []string {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(fieldName)) {
		t = strings.Trim(t, ":,.")
		if len(t) > 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
