package domain

// RuleConfig defines a custom scoring rule configuration.
// Custom rules are CEL expressions over extracted text features whose
// results join the heuristic score as additional additive signals.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate. Bool results map to 0/1, numeric
	// results are clamped to [0.0, 1.0].
	Expression string `json:"expression"`

	// Weight scales the expression result before it is added to the
	// fakeness sum.
	Weight float64 `json:"weight"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleResult is the output of a custom rule evaluation.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	TenantID  string  `json:"tenantId"`
	Score     float64 `json:"score"` // clamped expression result, pre-weight
	Weight    float64 `json:"weight"`
	Err       string  `json:"err,omitempty"`
	ProcessMs int64   `json:"processMs"` // Processing time in milliseconds
}

// TextFeatures are the variables exposed to CEL rule expressions.
// They are derived once per text and shared across all rules.
type TextFeatures struct {
	Text            string  `json:"text"`
	WordCount       int     `json:"word_count"`
	CharCount       int     `json:"char_count"`
	ExclaimCount    int     `json:"exclaim_count"`
	ExclaimRatio    float64 `json:"exclaim_ratio"`
	CapsRatio       float64 `json:"caps_ratio"`
	SensationalHits int     `json:"sensational_hits"`
}
