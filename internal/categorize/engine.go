// Package categorize assigns categories to transactions from keyword rules.
//
// Rules are evaluated by priority descending; rules sharing a priority are
// evaluated by ID ascending so that the outcome never depends on the order the
// store happened to return them in. The first rule with a keyword contained in
// the description (case-insensitively) wins.
package categorize

import (
	"sort"
	"strings"

	"assofin/internal/core"
)

// Matcher holds rules pre-sorted per transaction type. It is immutable once
// built and safe for concurrent use.
type Matcher struct {
	byType map[core.TransactionType][]core.CategorizationRule
}

// NewMatcher groups and orders rules for repeated matching.
func NewMatcher(rules []core.CategorizationRule) *Matcher {
	m := &Matcher{byType: make(map[core.TransactionType][]core.CategorizationRule, 2)}
	for _, r := range rules {
		if !r.TransactionType.Valid() {
			continue
		}
		m.byType[r.TransactionType] = append(m.byType[r.TransactionType], r)
	}
	for t := range m.byType {
		sortRules(m.byType[t])
	}
	return m
}

// Rules returns the rules applying to t in evaluation order.
func (m *Matcher) Rules(t core.TransactionType) []core.CategorizationRule {
	return append([]core.CategorizationRule(nil), m.byType[t]...)
}

// Match returns the category of the first rule of type t matching description.
func (m *Matcher) Match(description string, t core.TransactionType) (string, bool) {
	if strings.TrimSpace(description) == "" {
		return "", false
	}
	desc := strings.ToLower(description)
	for _, r := range m.byType[t] {
		if matches(desc, r.Keywords) {
			return r.CategoryID, true
		}
	}
	return "", false
}

// Match is the one-shot form of Matcher.Match used on the creation path.
func Match(description string, t core.TransactionType, rules []core.CategorizationRule) (string, bool) {
	return NewMatcher(rules).Match(description, t)
}

// Sorted returns a copy of rules in evaluation order, all types included.
func Sorted(rules []core.CategorizationRule) []core.CategorizationRule {
	out := append([]core.CategorizationRule(nil), rules...)
	sortRules(out)
	return out
}

func sortRules(rules []core.CategorizationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

// matches reports whether any keyword is a substring of the lowercased
// description. Empty keywords never match.
func matches(lowerDesc string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.Contains(lowerDesc, k) {
			return true
		}
	}
	return false
}
