package policy

import (
	"sort"

	"github.com/radekpospisil/congress/pkg/datalog"
)

// RuleSet indexes rules by the table their head defines, the shape top-down
// evaluation wants: all candidate rules for a goal in one lookup. Duplicate
// rules are rejected on add.
type RuleSet struct {
	rules map[string][]datalog.Rule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string][]datalog.Rule)}
}

// Add inserts a rule under the given table and reports whether the set
// changed.
func (rs *RuleSet) Add(table string, rule datalog.Rule) bool {
	for _, existing := range rs.rules[table] {
		if existing.Equal(rule) {
			return false
		}
	}
	rs.rules[table] = append(rs.rules[table], rule)
	return true
}

// Discard removes a rule from the given table and reports whether the set
// changed.
func (rs *RuleSet) Discard(table string, rule datalog.Rule) bool {
	list, ok := rs.rules[table]
	if !ok {
		return false
	}
	for i, existing := range list {
		if existing.Equal(rule) {
			rs.rules[table] = append(list[:i:i], list[i+1:]...)
			if len(rs.rules[table]) == 0 {
				delete(rs.rules, table)
			}
			return true
		}
	}
	return false
}

// Contains reports whether the rule is present under the given table.
func (rs *RuleSet) Contains(table string, rule datalog.Rule) bool {
	for _, existing := range rs.rules[table] {
		if existing.Equal(rule) {
			return true
		}
	}
	return false
}

// Get returns the rules defining the given table.
func (rs *RuleSet) Get(table string) []datalog.Rule {
	return rs.rules[table]
}

// ClearTable removes every rule defining the given table.
func (rs *RuleSet) ClearTable(table string) {
	delete(rs.rules, table)
}

// Clear removes everything.
func (rs *RuleSet) Clear() {
	rs.rules = make(map[string][]datalog.Rule)
}

// Tables returns the defined table names in sorted order.
func (rs *RuleSet) Tables() []string {
	out := make([]string, 0, len(rs.rules))
	for t := range rs.rules {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasTable reports whether any rule defines the given table.
func (rs *RuleSet) HasTable(table string) bool {
	_, ok := rs.rules[table]
	return ok
}

// Len returns the total number of rules.
func (rs *RuleSet) Len() int {
	n := 0
	for _, list := range rs.rules {
		n += len(list)
	}
	return n
}
