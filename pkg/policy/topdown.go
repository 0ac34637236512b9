package policy

import (
	"context"
	"fmt"

	"github.com/radekpospisil/congress/pkg/datalog"
)

// maxEvalDepth caps the goal stack. Rule sets are nonrecursive, so the limit
// only trips on pathological chains.
const maxEvalDepth = 512

// evaluator runs one top-down query. It holds the variable rename counter so
// every rule instantiation within the query is standardized apart. Callers
// hold the runtime lock for the duration of the query.
type evaluator struct {
	rt      *Runtime
	counter int
}

// all proves the goal in the given policy and returns every distinct ground
// instance, rendered via the plugged goal.
func (e *evaluator) all(ctx context.Context, goal datalog.Literal, policy string) ([]datalog.Literal, error) {
	solutions, err := e.evalLiteral(ctx, goal, policy, datalog.NewBindings(), 0)
	if err != nil {
		return nil, err
	}

	var out []datalog.Literal
	seen := map[string]struct{}{}
	for _, b := range solutions {
		plugged := b.PlugLiteral(goal)
		key := plugged.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, plugged)
	}
	return out, nil
}

// evalGoals proves a conjunction left to right, threading bindings through.
func (e *evaluator) evalGoals(ctx context.Context, goals []datalog.Literal, policy string,
	bindings datalog.Bindings, depth int) ([]datalog.Bindings, error) {

	if len(goals) == 0 {
		return []datalog.Bindings{bindings}, nil
	}

	first, err := e.evalLiteral(ctx, goals[0], policy, bindings, depth)
	if err != nil {
		return nil, err
	}

	var out []datalog.Bindings
	for _, b := range first {
		rest, err := e.evalGoals(ctx, goals[1:], policy, b, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}
	return out, nil
}

// evalLiteral proves a single literal. Negated literals must be ground by
// the time they are reached; ReorderForSafety on insert guarantees that for
// safe rules.
func (e *evaluator) evalLiteral(ctx context.Context, goal datalog.Literal, policy string,
	bindings datalog.Bindings, depth int) ([]datalog.Bindings, error) {

	if depth > maxEvalDepth {
		return nil, fmt.Errorf("%w at %s", ErrDepthLimit, goal.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if goal.Negated {
		plugged := bindings.PlugLiteral(goal)
		if !plugged.IsGround() {
			return nil, fmt.Errorf("negated literal %s is not ground", plugged.String())
		}
		proofs, err := e.evalLiteral(ctx, plugged.Complement(), policy, datalog.NewBindings(), depth+1)
		if err != nil {
			return nil, err
		}
		if len(proofs) > 0 {
			return nil, nil
		}
		return []datalog.Bindings{bindings}, nil
	}

	theoryName := policy
	if goal.Service != "" {
		theoryName = goal.Service
	}
	theory, ok := e.rt.theories[theoryName]
	if !ok {
		// Unknown services hold no facts, so the goal is simply
		// unsatisfiable.
		return nil, nil
	}

	// Inside the owning theory the table is local.
	local := datalog.Literal{Table: goal.Table, Args: goal.Args}

	var out []datalog.Bindings
	for _, rule := range theory.rulesFor(goal.Table) {
		renamed := datalog.RenameRule(rule, &e.counter)

		branch := bindings.Clone()
		if !branch.UnifyAtoms(local, renamed.Head) {
			continue
		}
		if renamed.IsFact() {
			out = append(out, branch)
			continue
		}
		solutions, err := e.evalGoals(ctx, renamed.Body, theory.Name(), branch, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, solutions...)
	}
	return out, nil
}
