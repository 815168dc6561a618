// Package risk classifies pending workflow operations and decides whether
// they need human approval before the engine may proceed.
//
// Classification is a pure function of a policy table keyed by operation
// name, with a vocabulary heuristic as fallback. The table is deployment
// configuration, not code, so new operations can be classified without
// touching the engine.
package risk

import (
	"strings"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// Assessment is the classifier's verdict for one operation.
type Assessment struct {
	Level            api.RiskLevel
	RequiresApproval bool
}

// Rule classifies a single operation name.
type Rule struct {
	Level api.RiskLevel `mapstructure:"level"`

	// RequiresApproval overrides the policy-wide ApproveFrom threshold
	// for this operation when non-nil.
	RequiresApproval *bool `mapstructure:"requires_approval"`
}

// Policy is the classification table plus heuristic vocabularies.
type Policy struct {
	// Operations maps exact operation names to rules.
	Operations map[string]Rule `mapstructure:"operations"`

	// ApproveFrom is the lowest level that requires approval when a rule
	// does not say otherwise. Default: medium.
	ApproveFrom api.RiskLevel `mapstructure:"approve_from"`

	// Destructive and ReadOnly extend the built-in heuristic
	// vocabularies. Matching is by token prefix on the operation name.
	Destructive []string `mapstructure:"destructive"`
	ReadOnly    []string `mapstructure:"read_only"`
}

// Built-in heuristic vocabularies. Operation names are matched token-wise
// against these, so "delete_all" and "bulk-update-rooms" hit the
// destructive list while "list_patients" hits the read-only one.
var (
	defaultDestructive = []string{
		"delete", "remove", "drop", "cancel", "bulk",
		"submit", "pay", "refund", "discharge", "terminate",
	}
	defaultReadOnly = []string{
		"list", "get", "read", "fetch", "search", "describe", "draft",
	}
)

// Classifier decides risk level and approval for pending operations.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	policy Policy
}

// NewClassifier builds a Classifier from the given policy. A zero Policy
// yields the default behavior: no table entries, medium-and-up requires
// approval, built-in vocabularies only.
func NewClassifier(policy Policy) *Classifier {
	if policy.ApproveFrom == "" {
		policy.ApproveFrom = api.RiskMedium
	}
	return &Classifier{policy: policy}
}

// Classify returns the risk assessment for op.
//
// Resolution order: exact table match, destructive vocabulary, read-only
// vocabulary, then the fail-safe default of medium (requires approval).
// An unclassified operation never fails open.
func (c *Classifier) Classify(op api.Operation) Assessment {
	if rule, ok := c.policy.Operations[op.Name]; ok {
		level := rule.Level
		if level == "" {
			level = api.RiskMedium
		}
		a := Assessment{Level: level, RequiresApproval: c.levelRequiresApproval(level)}
		if rule.RequiresApproval != nil {
			a.RequiresApproval = *rule.RequiresApproval
		}
		return a
	}

	if matchesVocabulary(op.Name, defaultDestructive) || matchesVocabulary(op.Name, c.policy.Destructive) {
		return Assessment{Level: api.RiskHigh, RequiresApproval: c.levelRequiresApproval(api.RiskHigh)}
	}
	if matchesVocabulary(op.Name, defaultReadOnly) || matchesVocabulary(op.Name, c.policy.ReadOnly) {
		return Assessment{Level: api.RiskLow, RequiresApproval: c.levelRequiresApproval(api.RiskLow)}
	}

	return Assessment{Level: api.RiskMedium, RequiresApproval: c.levelRequiresApproval(api.RiskMedium)}
}

func (c *Classifier) levelRequiresApproval(level api.RiskLevel) bool {
	return rank(level) >= rank(c.policy.ApproveFrom)
}

func rank(level api.RiskLevel) int {
	switch level {
	case api.RiskLow:
		return 0
	case api.RiskMedium:
		return 1
	case api.RiskHigh:
		return 2
	}
	return 1
}

// matchesVocabulary splits name on "_", "-", "." and ":" and reports
// whether any token starts with a vocabulary word.
func matchesVocabulary(name string, vocab []string) bool {
	if len(vocab) == 0 {
		return false
	}
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ':'
	})
	for _, tok := range tokens {
		for _, word := range vocab {
			if strings.HasPrefix(tok, word) {
				return true
			}
		}
	}
	return false
}
