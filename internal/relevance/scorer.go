package relevance

import (
	"strings"
	"unicode"
)

// Keyword is one weighted term the scorer looks for.
type Keyword struct {
	Term   string  `yaml:"term"`
	Weight float64 `yaml:"weight"`
}

// Scorer computes a topical relevance score for articles from weighted
// keyword matches. It is pure and safe for concurrent use.
type Scorer struct {
	keywords  map[string]float64
	threshold float64
}

// NewScorer constructs a Scorer. Keywords with empty terms are skipped; a
// zero weight counts as 1.
func NewScorer(keywords []Keyword, threshold float64) *Scorer {
	terms := make(map[string]float64, len(keywords))
	for _, kw := range keywords {
		term := strings.ToLower(strings.TrimSpace(kw.Term))
		if term == "" {
			continue
		}
		weight := kw.Weight
		if weight == 0 {
			weight = 1
		}
		terms[term] = weight
	}
	return &Scorer{keywords: terms, threshold: threshold}
}

// Score sums the weights of keywords found in the text. Matching is
// case-insensitive on whole words; title matches count double.
func (s *Scorer) Score(title, summary string) float64 {
	if s == nil || len(s.keywords) == 0 {
		return 0
	}
	score := 0.0
	for _, word := range tokenize(title) {
		if weight, ok := s.keywords[word]; ok {
			score += 2 * weight
		}
	}
	for _, word := range tokenize(summary) {
		if weight, ok := s.keywords[word]; ok {
			score += weight
		}
	}
	return score
}

// Relevant reports whether the score meets the configured threshold.
func (s *Scorer) Relevant(score float64) bool {
	if s == nil {
		return false
	}
	return score >= s.threshold
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
