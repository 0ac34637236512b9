package policy

import (
	"fmt"

	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/rs/zerolog"
)

// Theory is a nonrecursive collection of rules belonging to one policy.
// Mutation goes through the owning Runtime, which holds the lock and the
// cross-policy dependency graph; Theory itself is not safe for concurrent
// use.
type Theory struct {
	info   Info
	rules  *RuleSet
	logger zerolog.Logger
}

// newTheory creates an empty theory for the given policy.
func newTheory(info Info, logger zerolog.Logger) *Theory {
	return &Theory{
		info:   info,
		rules:  NewRuleSet(),
		logger: logger.With().Str("policy", info.Name).Logger(),
	}
}

// Info returns the policy metadata.
func (t *Theory) Info() Info { return t.info }

// Name returns the policy name.
func (t *Theory) Name() string { return t.info.Name }

// validateRule returns the errors inserting the rule would cause, without
// mutating the theory. Recursion is checked by the Runtime, which sees all
// policies.
func (t *Theory) validateRule(rule datalog.Rule) []error {
	var errs []error
	if rule.Head.Service != "" {
		errs = append(errs, fmt.Errorf(
			"rule head %s: heads must use local tables, not service-qualified ones",
			rule.Head.String()))
	}
	switch t.info.Kind {
	case KindDatasource:
		if !rule.IsFact() {
			errs = append(errs, fmt.Errorf(
				"datasource policy %s accepts only facts, got rule %q",
				t.info.Name, rule.String()))
		}
	case KindAction:
		// Action theories skip the safety checks.
	default:
		errs = append(errs, datalog.SafetyErrors(rule)...)
	}
	return errs
}

// insert adds the rule, reordered for safe evaluation, and reports whether
// the theory changed.
func (t *Theory) insert(rule datalog.Rule) bool {
	rule = datalog.ReorderForSafety(rule)
	changed := t.rules.Add(rule.Head.Table, rule)
	if changed {
		t.logger.Debug().Str("rule", rule.String()).Msg("Rule inserted")
	}
	return changed
}

// delete removes the rule and reports whether the theory changed. The rule
// is reordered the same way insert reorders, so a rule deletes regardless of
// the literal order it was written in.
func (t *Theory) delete(rule datalog.Rule) bool {
	rule = datalog.ReorderForSafety(rule)
	changed := t.rules.Discard(rule.Head.Table, rule)
	if changed {
		t.logger.Debug().Str("rule", rule.String()).Msg("Rule deleted")
	}
	return changed
}

// initializeTables clears the named tables and installs the given facts,
// clearing each fact's table on first touch so the tables end up holding
// exactly the new facts.
func (t *Theory) initializeTables(tables []string, facts []datalog.Fact) {
	cleared := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		t.rules.ClearTable(table)
		cleared[table] = struct{}{}
	}

	count := 0
	for _, f := range facts {
		if _, ok := cleared[f.Table]; !ok {
			t.rules.ClearTable(f.Table)
			cleared[f.Table] = struct{}{}
		}
		if t.rules.Add(f.Table, f.Rule()) {
			count++
		}
	}

	t.logger.Info().
		Int("tables", len(cleared)).
		Int("facts", count).
		Msg("Tables initialized")
}

// content returns the rules of the theory, optionally restricted to the
// given tables.
func (t *Theory) content(tables ...string) []datalog.Rule {
	if len(tables) == 0 {
		tables = t.rules.Tables()
	}
	var out []datalog.Rule
	for _, table := range tables {
		out = append(out, t.rules.Get(table)...)
	}
	return out
}

// rulesFor returns the candidate rules for a goal on the given local table.
func (t *Theory) rulesFor(table string) []datalog.Rule {
	return t.rules.Get(table)
}

// arity returns the argument count of the table, or -1 when the table is not
// defined here. A fixed arity per table is assumed.
func (t *Theory) arity(table string) int {
	rules := t.rules.Get(table)
	if len(rules) == 0 {
		return -1
	}
	return len(rules[0].Head.Args)
}

// definedTables returns the tables this theory defines, sorted.
func (t *Theory) definedTables() []string {
	return t.rules.Tables()
}
