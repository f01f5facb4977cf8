package rules

import "github.com/opensource-media/magpie/internal/domain"

// BuiltinRules returns an empty slice - all custom rules must be
// configured via database. The non-configurable heuristics live in the
// heuristic package instead.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{}
}
