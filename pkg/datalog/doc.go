// Package datalog implements the Congress policy rule language: Datalog-style
// rules of the form `head(args) :- lit, lit, ...` where body literals may be
// negated with a leading `not` and table names may carry a `service:` prefix
// identifying the datasource that publishes the table.
//
// The package covers the textual layer only: terms, literals, rules, the
// parser, unification, and rule safety analysis. Evaluation lives in
// pkg/policy.
package datalog
