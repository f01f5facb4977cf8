package domain

import (
	"context"
)

// Classifier is an optional external text classifier (typically a
// sentiment model). Implementations must be safe for concurrent use.
type Classifier interface {
	// Classify labels the given text. The caller is responsible for
	// truncating the input to the classifier's supported length.
	Classify(ctx context.Context, text string) (*Classification, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Classification is a raw classifier output.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Sentiment labels produced by the bundled classifiers.
const (
	SentimentNegative = "NEGATIVE"
	SentimentPositive = "POSITIVE"
)

// ClassifierConfig holds configuration for classifier initialization.
type ClassifierConfig struct {
	// Type is the classifier type: "none", "lexicon" or "http"
	Type string

	// MaxChars is the input prefix length passed to the classifier.
	MaxChars int

	// HTTP classifier settings (Pro tier)
	Endpoint    string
	Token       string
	TimeoutSecs int
}
