package router

import (
	"context"
	"strings"
	"unicode"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
)

// KeywordClassifier scores candidates by keyword hits. It answers "" when
// nothing matches or the best score is tied.
type KeywordClassifier struct {
	keywords map[string][]string
}

var _ contractx.Classifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier(personas []persona.Persona) *KeywordClassifier {
	k := &KeywordClassifier{keywords: make(map[string][]string, len(personas))}
	for _, p := range personas {
		k.keywords[p.Name] = p.Keywords
	}
	return k
}

func (k *KeywordClassifier) Classify(_ context.Context, text string, candidates []string) (string, error) {
	normalized := " " + normalize(text) + " "
	best, bestScore, tied := "", 0, false
	for _, name := range candidates {
		score := 0
		for _, kw := range k.keywords[name] {
			if strings.Contains(normalized, " "+kw+" ") {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = name, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return "", nil
	}
	return best, nil
}

// normalize lowercases and collapses punctuation to single spaces so that
// keywords only match on word boundaries. Hyphens are kept ("cr-v").
func normalize(text string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
