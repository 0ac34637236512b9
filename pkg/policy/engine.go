package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/radekpospisil/congress/pkg/graph"
	"github.com/radekpospisil/congress/pkg/telemetry"
	"github.com/rs/zerolog"
)

// DefaultPolicy is the policy queries and rule changes target when no policy
// is named.
const DefaultPolicy = "classification"

// Runtime owns the set of policies and the cross-policy dependency graph.
// All access is guarded by an RWMutex; queries run under the read lock.
type Runtime struct {
	mu       sync.RWMutex
	theories map[string]*Theory
	deps     *graph.BagGraph
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewRuntime creates a runtime holding only the default classification
// policy.
func NewRuntime(logger zerolog.Logger, metrics *telemetry.Metrics) *Runtime {
	rt := &Runtime{
		theories: make(map[string]*Theory),
		deps:     graph.NewBag(),
		logger:   logger.With().Str("component", "policy-runtime").Logger(),
		metrics:  metrics,
	}
	// The default policy always exists.
	info := Info{
		ID:        uuid.NewString(),
		Name:      DefaultPolicy,
		Kind:      KindNonrecursive,
		CreatedAt: time.Now(),
	}
	rt.theories[DefaultPolicy] = newTheory(info, rt.logger)
	return rt
}

// CreatePolicy adds an empty policy. The ID and creation time are filled in
// when absent.
func (rt *Runtime) CreatePolicy(info Info) (Info, error) {
	if err := validatePolicyName(info.Name); err != nil {
		return Info{}, err
	}
	if info.Kind == "" {
		info.Kind = KindNonrecursive
	}
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, exists := rt.theories[info.Name]; exists {
		return Info{}, fmt.Errorf("%w: %s", ErrPolicyExists, info.Name)
	}
	rt.theories[info.Name] = newTheory(info, rt.logger)
	rt.logger.Info().Str("policy", info.Name).Str("kind", string(info.Kind)).Msg("Policy created")
	return info, nil
}

// DeletePolicy removes a policy. It fails with ErrDanglingReference while
// rules in other policies still reference the policy's tables, and refuses
// to remove the default policy.
func (rt *Runtime) DeletePolicy(name string) error {
	if name == DefaultPolicy {
		return fmt.Errorf("cannot delete the %s policy", DefaultPolicy)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	theory, ok := rt.theories[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, name)
	}

	prefix := name + ":"
	for _, node := range rt.deps.Nodes() {
		if strings.HasPrefix(node, prefix) {
			continue
		}
		for _, e := range rt.deps.Edges(node) {
			if strings.HasPrefix(e.To, prefix) {
				return fmt.Errorf("%w: %s referenced by %s", ErrDanglingReference, e.To, node)
			}
		}
	}

	for _, rule := range theory.content() {
		if !rule.IsFact() {
			rt.removeRuleEdges(name, rule)
		}
	}
	delete(rt.theories, name)
	rt.logger.Info().Str("policy", name).Msg("Policy deleted")
	return nil
}

// GetPolicy returns the metadata of a policy.
func (rt *Runtime) GetPolicy(name string) (Info, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	theory, ok := rt.theories[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, name)
	}
	return theory.Info(), nil
}

// Policies returns the metadata of all policies, sorted by name.
func (rt *Runtime) Policies() []Info {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make([]Info, 0, len(rt.theories))
	for _, th := range rt.theories {
		out = append(out, th.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Content returns the rules of a policy, optionally restricted to tables.
func (rt *Runtime) Content(policy string, tables ...string) ([]datalog.Rule, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	theory, ok := rt.theories[policy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policy)
	}
	return theory.content(tables...), nil
}

// DefinedTables returns the tables a policy defines.
func (rt *Runtime) DefinedTables(policy string) ([]string, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	theory, ok := rt.theories[policy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policy)
	}
	return theory.definedTables(), nil
}

// Arity returns the argument count of a table in a policy, or -1 when the
// table is not defined there.
func (rt *Runtime) Arity(policy, table string) (int, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	theory, ok := rt.theories[policy]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrPolicyNotFound, policy)
	}
	return theory.arity(table), nil
}

// InsertRule parses a rule and inserts it into the policy. It reports
// whether the policy changed.
func (rt *Runtime) InsertRule(policy, text string) (datalog.Rule, bool, error) {
	rule, err := datalog.ParseRule(text)
	if err != nil {
		return datalog.Rule{}, false, err
	}
	changed, err := rt.Update([]Event{{Policy: policy, Rule: rule, Insert: true}})
	if err != nil {
		return datalog.Rule{}, false, err
	}
	return rule, len(changed) > 0, nil
}

// DeleteRule parses a rule and deletes it from the policy. It reports
// whether the policy changed.
func (rt *Runtime) DeleteRule(policy, text string) (bool, error) {
	rule, err := datalog.ParseRule(text)
	if err != nil {
		return false, err
	}
	changed, err := rt.Update([]Event{{Policy: policy, Rule: rule, Insert: false}})
	if err != nil {
		return false, err
	}
	return len(changed) > 0, nil
}

// Update applies a batch of rule events atomically and returns the events
// that actually changed some policy. A validation failure or a change that
// would introduce recursion rejects the whole batch.
func (rt *Runtime) Update(events []Event) ([]Event, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.updateLocked(events)
}

// UpdateWouldCauseErrors returns the validation errors applying the events
// would produce, without mutating anything. Recursion introduced by the
// batch is only detected by Update itself.
func (rt *Runtime) UpdateWouldCauseErrors(events []Event) []error {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.validateEvents(events)
}

// Define replaces the contents of a policy with the given rules, atomically.
func (rt *Runtime) Define(policy string, rules []datalog.Rule) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	theory, ok := rt.theories[policy]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, policy)
	}

	events := make([]Event, 0, theory.rules.Len()+len(rules))
	for _, rule := range theory.content() {
		events = append(events, Event{Policy: policy, Rule: rule, Insert: false})
	}
	for _, rule := range rules {
		events = append(events, Event{Policy: policy, Rule: rule, Insert: true})
	}
	_, err := rt.updateLocked(events)
	return err
}

// InitializeTables replaces the named tables of a datasource policy with the
// given facts.
func (rt *Runtime) InitializeTables(policy string, tables []string, facts []datalog.Fact) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	theory, ok := rt.theories[policy]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, policy)
	}
	for _, f := range facts {
		if strings.Contains(f.Table, ":") {
			return fmt.Errorf("fact table %s must be local to policy %s", f.Table, policy)
		}
	}
	theory.initializeTables(tables, facts)
	rt.metrics.SetPolicyRules(policy, theory.rules.Len())
	return nil
}

// Query evaluates a query atom against a policy and returns the derived
// ground atoms.
func (rt *Runtime) Query(ctx context.Context, policy, query string) (*QueryResult, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.queryLocked(ctx, policy, query)
}

// Simulate applies the given changes, evaluates the query, and rolls the
// changes back, all under one lock so nothing else observes the simulated
// state.
func (rt *Runtime) Simulate(ctx context.Context, policy, query string, changes []Event) (*QueryResult, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	applied, err := rt.updateLocked(changes)
	if err != nil {
		return nil, fmt.Errorf("simulation changes rejected: %w", err)
	}

	result, queryErr := rt.queryLocked(ctx, policy, query)

	// Revert in reverse order with flipped events.
	revert := make([]Event, 0, len(applied))
	for i := len(applied) - 1; i >= 0; i-- {
		e := applied[i]
		e.Insert = !e.Insert
		revert = append(revert, e)
	}
	if _, err := rt.updateLocked(revert); err != nil {
		// Reverting inserts of previously applied events cannot fail
		// validation; reaching this means the runtime is inconsistent.
		rt.logger.Error().Err(err).Msg("Simulation rollback failed")
		return nil, fmt.Errorf("simulation rollback failed: %w", err)
	}
	return result, queryErr
}

func (rt *Runtime) queryLocked(ctx context.Context, policy, query string) (*QueryResult, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	if _, ok := rt.theories[policy]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policy)
	}
	goal, err := datalog.ParseAtom(query)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	start := time.Now()
	eval := &evaluator{rt: rt}
	derived, err := eval.all(ctx, goal, policy)
	if err != nil {
		return nil, err
	}

	results := make([]string, 0, len(derived))
	for _, lit := range derived {
		results = append(results, lit.String())
	}
	sort.Strings(results)

	duration := time.Since(start)
	rt.metrics.ObserveQuery(policy, duration, len(results))
	rt.logger.Debug().
		Str("policy", policy).
		Str("query", query).
		Int("results", len(results)).
		Dur("duration", duration).
		Msg("Query evaluated")

	return &QueryResult{
		Query:       goal.String(),
		Policy:      policy,
		Results:     results,
		EvaluatedAt: time.Now(),
		Duration:    duration,
	}, nil
}

func (rt *Runtime) validateEvents(events []Event) []error {
	var errs []error
	for _, e := range events {
		policy := e.Policy
		if policy == "" {
			policy = DefaultPolicy
		}
		theory, ok := rt.theories[policy]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrPolicyNotFound, policy))
			continue
		}
		if e.Insert {
			errs = append(errs, theory.validateRule(e.Rule)...)
		} else if e.Rule.Head.Service != "" {
			errs = append(errs, fmt.Errorf(
				"rule head %s: heads must use local tables", e.Rule.Head.String()))
		}
	}
	return errs
}

func (rt *Runtime) updateLocked(events []Event) ([]Event, error) {
	if errs := rt.validateEvents(events); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var applied []Event
	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			e := applied[i]
			theory := rt.theories[e.Policy]
			if e.Insert {
				theory.delete(e.Rule)
				if !e.Rule.IsFact() {
					rt.removeRuleEdges(e.Policy, e.Rule)
				}
			} else {
				theory.insert(e.Rule)
				if !e.Rule.IsFact() {
					rt.addRuleEdges(e.Policy, e.Rule)
				}
			}
		}
	}

	inserted := false
	for _, e := range events {
		if e.Policy == "" {
			e.Policy = DefaultPolicy
		}
		theory := rt.theories[e.Policy]
		if e.Insert {
			if theory.insert(e.Rule) {
				if !e.Rule.IsFact() {
					rt.addRuleEdges(e.Policy, e.Rule)
					inserted = true
				}
				applied = append(applied, e)
			}
		} else {
			if theory.delete(e.Rule) {
				if !e.Rule.IsFact() {
					rt.removeRuleEdges(e.Policy, e.Rule)
				}
				applied = append(applied, e)
			}
		}
	}

	if inserted && rt.deps.HasCycle() {
		err := ErrRecursion
		if rt.deps.Stratification([]string{graph.NegationLabel}) == nil {
			err = ErrUnstratified
		}
		cycles := rt.deps.Cycles()
		rollback()
		return nil, fmt.Errorf("%w: %s", err, strings.Join(cycles[0], " -> "))
	}

	for _, e := range applied {
		op := "delete"
		if e.Insert {
			op = "insert"
		}
		rt.metrics.RuleChange(e.Policy, op)
	}
	return applied, nil
}

// addRuleEdges records the table dependencies of a rule in the global graph.
// Facts carry no dependencies and stay out of the graph.
func (rt *Runtime) addRuleEdges(policy string, rule datalog.Rule) {
	head := qualifiedTable(policy, "", rule.Head.Table)
	for _, lit := range rule.Body {
		label := ""
		if lit.Negated {
			label = graph.NegationLabel
		}
		rt.deps.AddEdge(head, qualifiedTable(policy, lit.Service, lit.Table), label)
	}
}

func (rt *Runtime) removeRuleEdges(policy string, rule datalog.Rule) {
	head := qualifiedTable(policy, "", rule.Head.Table)
	for _, lit := range rule.Body {
		label := ""
		if lit.Negated {
			label = graph.NegationLabel
		}
		rt.deps.DeleteEdge(head, qualifiedTable(policy, lit.Service, lit.Table), label)
	}
}

// qualifiedTable names a table globally: the literal's service when present,
// the containing policy otherwise.
func qualifiedTable(policy, service, table string) string {
	if service != "" {
		return service + ":" + table
	}
	return policy + ":" + table
}

func validatePolicyName(name string) error {
	if name == "" {
		return fmt.Errorf("policy name must not be empty")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || c == '.' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9')
		if !ok {
			return fmt.Errorf("invalid policy name %q", name)
		}
	}
	return nil
}
