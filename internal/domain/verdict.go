package domain

import (
	"time"
)

// Verdict is the complete credibility assessment for a piece of text.
type Verdict struct {
	// FakeScore is the fused fakeness score in [0.0, 1.0].
	FakeScore float64 `json:"fake_score"`

	// Confidence is the distance from maximal uncertainty, |score-0.5|*2.
	Confidence float64 `json:"confidence"`

	// Label is "FAKE", "REAL" or "UNKNOWN".
	Label string `json:"label"`

	// Method records how the score was produced: "rule-based" or "hybrid".
	Method string `json:"method"`

	// Details exposes the per-method breakdowns.
	Details VerdictDetails `json:"details"`

	// Error is set for degenerate inputs (e.g. empty text).
	Error string `json:"error,omitempty"`
}

// VerdictDetails carries the intermediate results behind a verdict.
type VerdictDetails struct {
	RuleBased   HeuristicResult         `json:"rule_based"`
	Transformer *ExternalClassification `json:"transformer,omitempty"`
}

// HeuristicResult is the output of the rule-based scorer.
type HeuristicResult struct {
	FakeScore float64      `json:"fake_score"`
	Signals   []RuleSignal `json:"signals,omitempty"`
	Method    string       `json:"method"`
}

// RuleSignal records a single rule's contribution to the heuristic score.
type RuleSignal struct {
	Kind         string  `json:"kind"`
	Contribution float64 `json:"contribution"`
}

// ExternalClassification is the external classifier's result mapped
// onto the fakeness scale.
type ExternalClassification struct {
	FakeScore  float64 `json:"fake_score"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Error      string  `json:"error,omitempty"`
}

// Verdict labels
const (
	LabelFake    = "FAKE"
	LabelReal    = "REAL"
	LabelUnknown = "UNKNOWN"
)

// Scoring methods
const (
	MethodRuleBased   = "rule-based"
	MethodHybrid      = "hybrid"
	MethodTransformer = "transformer"
)

// Rule signal kinds emitted by the heuristic scorer.
const (
	SignalSensational = "sensational_phrases"
	SignalExclamation = "exclamation_density"
	SignalCapsRatio   = "caps_ratio"
	SignalSuspicious  = "suspicious_pattern"
	SignalLength      = "length_anomaly"
	SignalCustomRule  = "custom_rule"
)

// Analysis is a persisted analysis record.
type Analysis struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Text      string    `json:"text"`
	TextHash  string    `json:"textHash"`
	Verdict   Verdict   `json:"verdict"`
	CreatedAt time.Time `json:"createdAt"`
}

// BatchItem is one entry of a batch analysis result. TextPreview is a
// truncated echo of the input so callers can correlate results.
type BatchItem struct {
	Index       int     `json:"index"`
	TextPreview string  `json:"text_preview"`
	Verdict     Verdict `json:"verdict"`
}

// BatchSummary aggregates verdict labels across a batch.
type BatchSummary struct {
	Total     int `json:"total"`
	FakeCount int `json:"fake"`
	RealCount int `json:"real"`
}

// PageVerdict is the result of analyzing a title/content pair.
type PageVerdict struct {
	Title   Verdict `json:"title"`
	Content Verdict `json:"content"`
	Overall float64 `json:"overall_score"`
	Label   string  `json:"overall_label"`
}

// TenantStats holds windowed per-tenant analysis counters.
type TenantStats struct {
	TenantID   string  `json:"tenantId"`
	WindowSecs int     `json:"windowSecs"`
	Analyses   int64   `json:"analyses"`
	FakeCount  int64   `json:"fakeCount"`
	FakeRate   float64 `json:"fakeRate"`
}
