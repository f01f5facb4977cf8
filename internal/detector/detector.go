// Package detector fuses rule-based and classifier scores into verdicts.
//
// The rule-based score always runs. When an external classifier is
// configured and reachable, its sentiment is mapped onto the fakeness
// scale and blended in with a fixed heuristic-dominant weighting. A
// missing or unreachable classifier silently degrades to rule-based
// scoring; a classifier failure is recorded on the verdict but never
// fails the analysis.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-media/magpie/internal/classifier"
	"github.com/opensource-media/magpie/internal/domain"
	"github.com/opensource-media/magpie/internal/heuristic"
	"github.com/opensource-media/magpie/internal/rules"
)

// Fusion weights. The heuristics dominate because the sentiment proxy
// is a rough credibility signal, not a purpose-built fake-news model.
const (
	heuristicWeight  = 0.6
	classifierWeight = 0.4
)

// Page-level weights. Content carries more signal than the headline.
// Kept separate from the fusion weights above; they answer different
// questions.
const (
	pageTitleWeight   = 0.3
	pageContentWeight = 0.7
)

// fakeThreshold is strict: exactly 0.5 stays REAL.
const fakeThreshold = 0.5

// Detector produces verdicts for texts.
type Detector struct {
	// ClassifierMaxChars is the input prefix passed to the classifier.
	ClassifierMaxChars int

	// PageContentChars is the content prefix analyzed for pages.
	PageContentChars int

	classifier domain.Classifier
	engine     *rules.Engine
	logger     *slog.Logger
}

// New creates a detector. Both the classifier and the custom rule
// engine are optional; pass nil to run built-in heuristics only.
func New(clf domain.Classifier, engine *rules.Engine, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		ClassifierMaxChars: 512,
		PageContentChars:   2000,
		classifier:         clf,
		engine:             engine,
		logger:             logger,
	}
}

// Predict scores a single text and builds the final verdict.
func (d *Detector) Predict(ctx context.Context, tenantID string, text string) *domain.Verdict {
	if strings.TrimSpace(text) == "" {
		return &domain.Verdict{
			FakeScore:  0.5,
			Confidence: 0.0,
			Label:      domain.LabelUnknown,
			Method:     domain.MethodRuleBased,
			Details: domain.VerdictDetails{
				RuleBased: domain.HeuristicResult{Method: domain.MethodRuleBased},
			},
			Error: "Empty text",
		}
	}

	features := heuristic.ExtractFeatures(text)
	ruleResult := heuristic.ScoreFeatures(text, features)

	// Fold in custom rule contributions, then re-clamp the sum.
	if d.engine != nil && d.engine.RulesCount() > 0 {
		results, err := d.engine.EvaluateAll(ctx, tenantID, features)
		if err != nil {
			d.logger.Warn("custom rule evaluation failed", "tenantId", tenantID, "error", err)
		}
		for _, r := range results {
			if r.Err != "" {
				d.logger.Warn("custom rule errored", "ruleId", r.RuleID, "tenantId", tenantID, "error", r.Err)
				continue
			}
			contribution := r.Score * r.Weight
			if contribution <= 0 {
				continue
			}
			ruleResult.Signals = append(ruleResult.Signals, domain.RuleSignal{
				Kind:         fmt.Sprintf("%s:%s", domain.SignalCustomRule, r.RuleID),
				Contribution: contribution,
			})
		}
		ruleResult.FakeScore = heuristic.SumSignals(ruleResult.Signals)
	}

	fakeScore := ruleResult.FakeScore
	method := domain.MethodRuleBased
	details := domain.VerdictDetails{RuleBased: ruleResult}

	if d.classifier != nil {
		external := d.classify(ctx, tenantID, text)
		if external != nil {
			details.Transformer = external
			if external.Error == "" {
				fakeScore = heuristicWeight*fakeScore + classifierWeight*external.FakeScore
				method = domain.MethodHybrid
			}
		}
	}

	confidence := math.Abs(fakeScore-0.5) * 2

	label := domain.LabelReal
	if fakeScore > fakeThreshold {
		label = domain.LabelFake
	}

	return &domain.Verdict{
		FakeScore:  round3(fakeScore),
		Confidence: round3(confidence),
		Label:      label,
		Method:     method,
		Details:    details,
	}
}

// classify runs the external classifier on a bounded text prefix and
// maps its sentiment onto the fakeness scale. Returns nil when the
// classifier is unreachable so the caller degrades silently.
func (d *Detector) classify(ctx context.Context, tenantID string, text string) *domain.ExternalClassification {
	truncated := truncate(text, d.ClassifierMaxChars)

	result, err := d.classifier.Classify(ctx, truncated)
	if err != nil {
		if errors.Is(err, classifier.ErrUnavailable) {
			d.logger.Warn("classifier unavailable, using rule-based score", "tenantId", tenantID, "error", err)
			return nil
		}
		return &domain.ExternalClassification{
			FakeScore: 0.5,
			Method:    domain.MethodTransformer,
			Error:     err.Error(),
		}
	}

	// Negative sentiment is the fakeness proxy.
	fakeScore := 1.0 - result.Confidence
	if result.Label == domain.SentimentNegative {
		fakeScore = result.Confidence
	}

	return &domain.ExternalClassification{
		FakeScore:  fakeScore,
		Sentiment:  strings.ToLower(result.Label),
		Confidence: result.Confidence,
		Method:     domain.MethodTransformer,
	}
}

// AnalyzePage scores a pre-extracted title/content pair and combines
// them into an overall page verdict. Either part may be blank; the
// overall score then falls back to the remaining part.
func (d *Detector) AnalyzePage(ctx context.Context, tenantID string, title string, content string) *domain.PageVerdict {
	page := &domain.PageVerdict{}

	hasTitle := strings.TrimSpace(title) != ""
	hasContent := strings.TrimSpace(content) != ""

	if hasTitle {
		page.Title = *d.Predict(ctx, tenantID, title)
	}
	if hasContent {
		page.Content = *d.Predict(ctx, tenantID, truncate(content, d.PageContentChars))
	}

	switch {
	case hasTitle && hasContent:
		page.Overall = round3(pageTitleWeight*page.Title.FakeScore + pageContentWeight*page.Content.FakeScore)
		page.Label = domain.LabelReal
		if page.Overall > fakeThreshold {
			page.Label = domain.LabelFake
		}
	case hasContent:
		page.Overall = page.Content.FakeScore
		page.Label = page.Content.Label
	case hasTitle:
		page.Overall = page.Title.FakeScore
		page.Label = page.Title.Label
	default:
		page.Overall = 0.5
		page.Label = domain.LabelUnknown
	}

	return page
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// round3 rounds to three decimal places for stable wire output.
func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// HashText returns the hex SHA-256 of a text, used as the cache and
// storage key so identical inputs share one verdict.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
