// Package classifier provides the optional external text classifiers.
//
// A classifier labels text with a sentiment and a confidence. The
// detector maps that onto the fakeness scale: negative sentiment is a
// rough proxy for sensationalism. Classifiers are strictly optional;
// the detector degrades to rule-based scoring when none is configured
// or the configured one is unreachable.
package classifier

import (
	"errors"
	"fmt"

	"github.com/opensource-media/magpie/internal/domain"
)

// ErrUnavailable indicates the classifier backend cannot be reached.
// Callers should degrade to rule-based scoring rather than fail.
var ErrUnavailable = errors.New("classifier unavailable")

// New creates a classifier based on configuration.
// Type "none" returns nil: rule-based scoring only.
func New(cfg domain.ClassifierConfig) (domain.Classifier, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "lexicon":
		return NewLexiconClassifier(), nil

	case "http":
		return NewHTTPClassifier(cfg)

	default:
		return nil, fmt.Errorf("unsupported classifier type: %s", cfg.Type)
	}
}
