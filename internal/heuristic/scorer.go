// Package heuristic implements the rule-based fakeness scorer.
//
// The scorer is deterministic and pure: the same text always produces
// the same score, and no I/O happens during scoring. Each rule emits a
// bounded non-negative contribution; contributions are summed and the
// total is clamped to 1.0.
package heuristic

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/opensource-media/magpie/internal/domain"
)

// Rule contribution bounds.
const (
	sensationalPerHit = 0.15
	sensationalCap    = 0.5
	exclaimThreshold  = 0.05
	exclaimFactor     = 2.0
	exclaimCap        = 0.3
	capsThreshold     = 0.3
	capsPenalty       = 0.2
	patternPenalty    = 0.15
	lengthPenalty     = 0.1
	minWords          = 5
	maxWords          = 500
)

// ExtractFeatures derives the scoring features for a text. The same
// features feed both the built-in rules and custom rule expressions.
func ExtractFeatures(text string) domain.TextFeatures {
	words := len(strings.Fields(text))
	exclaims := strings.Count(text, "!")

	var upper, alpha int
	for _, r := range text {
		if unicode.IsLetter(r) {
			alpha++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, phrase := range sensationalPhrases {
		if strings.Contains(lower, phrase) {
			hits++
		}
	}

	return domain.TextFeatures{
		Text:            text,
		WordCount:       words,
		CharCount:       utf8.RuneCountInString(text),
		ExclaimCount:    exclaims,
		ExclaimRatio:    float64(exclaims) / float64(max(words, 1)),
		CapsRatio:       float64(upper) / float64(max(alpha, 1)),
		SensationalHits: hits,
	}
}

// Score runs the built-in rules over a text and returns the additive,
// capped fakeness score with per-rule signals.
func Score(text string) domain.HeuristicResult {
	return ScoreFeatures(text, ExtractFeatures(text))
}

// ScoreFeatures is like Score but reuses already-extracted features.
func ScoreFeatures(text string, f domain.TextFeatures) domain.HeuristicResult {
	var signals []domain.RuleSignal

	if f.SensationalHits > 0 {
		signals = append(signals, domain.RuleSignal{
			Kind:         domain.SignalSensational,
			Contribution: min(float64(f.SensationalHits)*sensationalPerHit, sensationalCap),
		})
	}

	if f.ExclaimRatio > exclaimThreshold {
		signals = append(signals, domain.RuleSignal{
			Kind:         domain.SignalExclamation,
			Contribution: min(f.ExclaimRatio*exclaimFactor, exclaimCap),
		})
	}

	if f.CapsRatio > capsThreshold {
		signals = append(signals, domain.RuleSignal{
			Kind:         domain.SignalCapsRatio,
			Contribution: capsPenalty,
		})
	}

	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(text) {
			signals = append(signals, domain.RuleSignal{
				Kind:         domain.SignalSuspicious,
				Contribution: patternPenalty,
			})
		}
	}

	if f.WordCount < minWords || f.WordCount > maxWords {
		signals = append(signals, domain.RuleSignal{
			Kind:         domain.SignalLength,
			Contribution: lengthPenalty,
		})
	}

	return domain.HeuristicResult{
		FakeScore: SumSignals(signals),
		Signals:   signals,
		Method:    domain.MethodRuleBased,
	}
}

// SumSignals adds signal contributions and clamps the total to [0, 1].
func SumSignals(signals []domain.RuleSignal) float64 {
	total := 0.0
	for _, s := range signals {
		total += s.Contribution
	}
	return min(total, 1.0)
}
