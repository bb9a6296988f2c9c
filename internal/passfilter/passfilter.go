package passfilter

import (
	"sort"
	"strings"
)

// Rule is one named substring pattern.
type Rule struct {
	Name    string
	Pattern string
}

// RuleSet is an immutable ordered list of rules, sorted by name so the
// first-match result is deterministic.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet builds a RuleSet from a name -> substring table. Empty patterns
// are dropped since they would match every message.
func NewRuleSet(table map[string]string) RuleSet {
	rules := make([]Rule, 0, len(table))
	for name, pattern := range table {
		if pattern == "" {
			continue
		}
		rules = append(rules, Rule{Name: name, Pattern: pattern})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return RuleSet{rules: rules}
}

// Len returns the number of active rules.
func (s RuleSet) Len() int { return len(s.rules) }

// Rules returns a copy of the rules in evaluation order.
func (s RuleSet) Rules() []Rule { return append([]Rule(nil), s.rules...) }

// Match returns the first rule whose pattern occurs in message (case-sensitive).
func (s RuleSet) Match(message string) (Rule, bool) {
	for _, r := range s.rules {
		if strings.Contains(message, r.Pattern) {
			return r, true
		}
	}
	return Rule{}, false
}

// Result is the disposition of one message.
type Result struct {
	MatchesDouble bool
	MatchesSingle bool
	// Rule names the rule that fired, empty when nothing matched.
	Rule string
}

// Filter evaluates messages against the double-pass (log and escalate) and
// single-pass (log only) rule sets.
type Filter struct {
	double RuleSet
	single RuleSet
}

// New creates a Filter from the two rule tables.
func New(double, single map[string]string) *Filter {
	return &Filter{double: NewRuleSet(double), single: NewRuleSet(single)}
}

// Classify checks double-pass first; single-pass is only evaluated when no
// double-pass rule fires.
func (f *Filter) Classify(message string) Result {
	if f == nil {
		return Result{}
	}
	if r, ok := f.double.Match(message); ok {
		return Result{MatchesDouble: true, Rule: r.Name}
	}
	if r, ok := f.single.Match(message); ok {
		return Result{MatchesSingle: true, Rule: r.Name}
	}
	return Result{}
}

// Double returns the double-pass rule set.
func (f *Filter) Double() RuleSet { return f.double }

// Single returns the single-pass rule set.
func (f *Filter) Single() RuleSet { return f.single }
