package classifier

import (
	"context"
	"strings"
	"unicode"

	"github.com/opensource-media/magpie/internal/domain"
)

// LexiconClassifier is a local word-list sentiment classifier.
// It is deterministic, does no I/O and is always available, which
// makes it the default collaborator for Community tier deployments
// that want hybrid scoring without running a model server.
type LexiconClassifier struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var positiveWords = []string{
	"good", "great", "excellent", "positive", "success", "successful",
	"improve", "improved", "growth", "benefit", "beneficial", "progress",
	"approved", "support", "supported", "agreement", "peaceful", "stable",
	"confirmed", "verified", "accurate", "reliable", "trusted",
}

var negativeWords = []string{
	"bad", "terrible", "horrible", "awful", "disaster", "disastrous",
	"crisis", "collapse", "scandal", "outrage", "outrageous", "shocking",
	"fear", "panic", "threat", "dangerous", "catastrophe", "catastrophic",
	"fraud", "hoax", "fake", "lie", "lies", "exposed", "secret", "banned",
	"destroy", "destroyed", "doom", "deadly",
}

// NewLexiconClassifier creates a classifier over the embedded word lists.
func NewLexiconClassifier() *LexiconClassifier {
	c := &LexiconClassifier{
		positive: make(map[string]struct{}, len(positiveWords)),
		negative: make(map[string]struct{}, len(negativeWords)),
	}
	for _, w := range positiveWords {
		c.positive[w] = struct{}{}
	}
	for _, w := range negativeWords {
		c.negative[w] = struct{}{}
	}
	return c
}

// Classify counts polarity hits and labels the text. Confidence grows
// with the margin between the polarities and stays in [0.5, 1.0].
func (c *LexiconClassifier) Classify(ctx context.Context, text string) (*domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pos, neg int
	for _, word := range tokenize(text) {
		if _, ok := c.positive[word]; ok {
			pos++
		}
		if _, ok := c.negative[word]; ok {
			neg++
		}
	}

	label := domain.SentimentPositive
	if neg > pos {
		label = domain.SentimentNegative
	}

	total := pos + neg
	margin := pos - neg
	if margin < 0 {
		margin = -margin
	}

	confidence := 0.5
	if total > 0 {
		confidence = 0.5 + 0.5*float64(margin)/float64(total)
	}

	return &domain.Classification{
		Label:      label,
		Confidence: confidence,
	}, nil
}

// Ping always succeeds; the lexicon lives in memory.
func (c *LexiconClassifier) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (c *LexiconClassifier) Close() error {
	return nil
}

// tokenize lowercases and splits on non-letter boundaries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
