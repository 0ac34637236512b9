package policy

import (
	"context"
	"testing"

	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	return NewRuntime(zerolog.Nop(), nil)
}

func mustFact(t *testing.T, table string, values ...interface{}) datalog.Fact {
	t.Helper()
	f, err := datalog.NewFact(table, values...)
	require.NoError(t, err)
	return f
}

func TestPolicyLifecycle(t *testing.T) {
	rt := newTestRuntime(t)

	// The default policy always exists.
	info, err := rt.GetPolicy(DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, KindNonrecursive, info.Kind)

	created, err := rt.CreatePolicy(Info{Name: "nova", Kind: KindDatasource})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = rt.CreatePolicy(Info{Name: "nova"})
	assert.ErrorIs(t, err, ErrPolicyExists)

	_, err = rt.CreatePolicy(Info{Name: "bad name"})
	assert.Error(t, err)

	names := []string{}
	for _, p := range rt.Policies() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{DefaultPolicy, "nova"}, names)

	require.NoError(t, rt.DeletePolicy("nova"))
	assert.ErrorIs(t, rt.DeletePolicy("nova"), ErrPolicyNotFound)
	assert.Error(t, rt.DeletePolicy(DefaultPolicy))
}

func TestDeletePolicy_DanglingReference(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.CreatePolicy(Info{Name: "nova", Kind: KindDatasource})
	require.NoError(t, err)

	_, _, err = rt.InsertRule(DefaultPolicy, `uses(x) :- nova:vm(x)`)
	require.NoError(t, err)

	err = rt.DeletePolicy("nova")
	assert.ErrorIs(t, err, ErrDanglingReference)

	changed, err := rt.DeleteRule(DefaultPolicy, `uses(x) :- nova:vm(x)`)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.NoError(t, rt.DeletePolicy("nova"))
}

func TestInsertRule_Validation(t *testing.T) {
	rt := newTestRuntime(t)

	// Unsafe: head variable missing from a positive body literal.
	_, _, err := rt.InsertRule(DefaultPolicy, `p(x, y) :- q(x)`)
	assert.Error(t, err)

	// Service-qualified heads are rejected.
	_, _, err = rt.InsertRule(DefaultPolicy, `nova:p(x) :- q(x)`)
	assert.Error(t, err)

	// Datasource policies accept only facts.
	_, err = rt.CreatePolicy(Info{Name: "nova", Kind: KindDatasource})
	require.NoError(t, err)
	_, _, err = rt.InsertRule("nova", `p(x) :- q(x)`)
	assert.Error(t, err)
	_, _, err = rt.InsertRule("nova", `vm("vm-1")`)
	assert.NoError(t, err)
}

func TestInsertRule_Idempotent(t *testing.T) {
	rt := newTestRuntime(t)

	_, changed, err := rt.InsertRule(DefaultPolicy, `p(x) :- q(x)`)
	require.NoError(t, err)
	assert.True(t, changed)

	// Same rule again changes nothing.
	_, changed, err = rt.InsertRule(DefaultPolicy, `p(x) :- q(x)`)
	require.NoError(t, err)
	assert.False(t, changed)

	// Deleting with reordered literals still matches.
	_, _, err = rt.InsertRule(DefaultPolicy, `r(x) :- q(x), not s(x)`)
	require.NoError(t, err)
	changed, err = rt.DeleteRule(DefaultPolicy, `r(x) :- not s(x), q(x)`)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestUpdate_RejectsRecursion(t *testing.T) {
	rt := newTestRuntime(t)

	_, _, err := rt.InsertRule(DefaultPolicy, `p(x) :- q(x)`)
	require.NoError(t, err)

	_, _, err = rt.InsertRule(DefaultPolicy, `q(x) :- p(x)`)
	assert.ErrorIs(t, err, ErrRecursion)

	// The rejected rule was rolled back.
	rules, err := rt.Content(DefaultPolicy)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	// A cycle through negation reports the stratification error.
	_, _, err = rt.InsertRule(DefaultPolicy, `a(x) :- b(x), not c(x)`)
	require.NoError(t, err)
	_, _, err = rt.InsertRule(DefaultPolicy, `c(x) :- a(x)`)
	assert.ErrorIs(t, err, ErrUnstratified)
}

func TestUpdate_BatchIsAtomic(t *testing.T) {
	rt := newTestRuntime(t)

	good, err := datalog.ParseRule(`p(x) :- q(x)`)
	require.NoError(t, err)
	bad, err := datalog.ParseRule(`r(x, y) :- q(x)`)
	require.NoError(t, err)

	_, err = rt.Update([]Event{
		{Policy: DefaultPolicy, Rule: good, Insert: true},
		{Policy: DefaultPolicy, Rule: bad, Insert: true},
	})
	require.Error(t, err)

	rules, err := rt.Content(DefaultPolicy)
	require.NoError(t, err)
	assert.Empty(t, rules)

	errs := rt.UpdateWouldCauseErrors([]Event{
		{Policy: DefaultPolicy, Rule: bad, Insert: true},
	})
	assert.Len(t, errs, 1)
}

func TestInitializeTables(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.CreatePolicy(Info{Name: "nova", Kind: KindDatasource})
	require.NoError(t, err)

	facts := []datalog.Fact{
		mustFact(t, "vm", "vm-1"),
		mustFact(t, "vm", "vm-2"),
	}
	require.NoError(t, rt.InitializeTables("nova", nil, facts))

	n, err := rt.Arity("nova", "vm")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A later poll replaces the table wholesale.
	require.NoError(t, rt.InitializeTables("nova", []string{"vm"}, []datalog.Fact{
		mustFact(t, "vm", "vm-3"),
	}))
	rules, err := rt.Content("nova", "vm")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, `vm("vm-3")`, rules[0].String())

	// An empty poll clears the named tables.
	require.NoError(t, rt.InitializeTables("nova", []string{"vm"}, nil))
	tables, err := rt.DefinedTables("nova")
	require.NoError(t, err)
	assert.Empty(t, tables)

	// Namespaced fact tables are rejected.
	err = rt.InitializeTables("nova", nil, []datalog.Fact{
		mustFact(t, "neutron:port", "p-1"),
	})
	assert.Error(t, err)
}

func TestQuery_Basic(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	for _, text := range []string{
		`parent("alice", "bob")`,
		`parent("bob", "carol")`,
		`grandparent(x, z) :- parent(x, y), parent(y, z)`,
	} {
		_, _, err := rt.InsertRule(DefaultPolicy, text)
		require.NoError(t, err)
	}

	result, err := rt.Query(ctx, DefaultPolicy, `grandparent(x, z)`)
	require.NoError(t, err)
	assert.Equal(t, []string{`grandparent("alice", "carol")`}, result.Results)

	// Ground queries act as membership checks.
	result, err = rt.Query(ctx, "", `parent("alice", "bob")`)
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)

	result, err = rt.Query(ctx, "", `parent("alice", "carol")`)
	require.NoError(t, err)
	assert.Empty(t, result.Results)

	_, err = rt.Query(ctx, "missing", `p(x)`)
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}

func TestQuery_UnknownServiceIsEmpty(t *testing.T) {
	rt := newTestRuntime(t)

	_, _, err := rt.InsertRule(DefaultPolicy, `p(x) :- ghost:q(x)`)
	require.NoError(t, err)

	result, err := rt.Query(context.Background(), DefaultPolicy, `p(x)`)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

func TestQuery_DisconnectNetwork(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	for _, name := range []string{"nova", "neutron"} {
		_, err := rt.CreatePolicy(Info{Name: name, Kind: KindDatasource})
		require.NoError(t, err)
	}

	require.NoError(t, rt.InitializeTables("nova", nil, []datalog.Fact{
		mustFact(t, "virtual_machine", "vm1"),
		mustFact(t, "virtual_machine", "vm2"),
		mustFact(t, "virtual_machine", "vm3"),
		mustFact(t, "network", "vm1", "net1"),
		mustFact(t, "network", "vm2", "net2"),
		mustFact(t, "network", "vm3", "net3"),
		mustFact(t, "owner", "vm1", "alice"),
		mustFact(t, "owner", "vm2", "bob"),
		mustFact(t, "owner", "vm3", "eve"),
	}))
	require.NoError(t, rt.InitializeTables("neutron", nil, []datalog.Fact{
		mustFact(t, "public_network", "net2"),
		mustFact(t, "owner", "net1", "carol"),
		mustFact(t, "owner", "net2", "dave"),
		mustFact(t, "owner", "net3", "frank"),
	}))

	for _, text := range []string{
		`error("vm1")`,
		`error("vm2")`,
		`error("vm3")`,
		`group("alice", "eng")`,
		`group("carol", "eng")`,
		`same_group(x, y) :- group(x, g), group(y, g)`,
		`disconnect_network(vm, network) :-
			error(vm),
			nova:virtual_machine(vm),
			nova:network(vm, network),
			not neutron:public_network(network),
			neutron:owner(network, network_owner),
			nova:owner(vm, vm_owner),
			not same_group(network_owner, vm_owner)`,
	} {
		_, _, err := rt.InsertRule(DefaultPolicy, text)
		require.NoError(t, err)
	}

	// vm1's network owner shares a group with vm1's owner, vm2's network is
	// public; only vm3 crosses an ownership boundary on a private network.
	result, err := rt.Query(ctx, DefaultPolicy, `disconnect_network(vm, network)`)
	require.NoError(t, err)
	assert.Equal(t, []string{`disconnect_network("vm3", "net3")`}, result.Results)
}

func TestSimulate_RollsBack(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	for _, text := range []string{
		`q("a")`,
		`p(x) :- q(x)`,
	} {
		_, _, err := rt.InsertRule(DefaultPolicy, text)
		require.NoError(t, err)
	}

	extra, err := datalog.ParseRule(`q("b")`)
	require.NoError(t, err)

	result, err := rt.Simulate(ctx, DefaultPolicy, `p(x)`, []Event{
		{Policy: DefaultPolicy, Rule: extra, Insert: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`p("a")`, `p("b")`}, result.Results)

	// The simulated change is gone.
	result, err = rt.Query(ctx, DefaultPolicy, `p(x)`)
	require.NoError(t, err)
	assert.Equal(t, []string{`p("a")`}, result.Results)
}

func TestDefine_ReplacesContents(t *testing.T) {
	rt := newTestRuntime(t)

	_, _, err := rt.InsertRule(DefaultPolicy, `old("x")`)
	require.NoError(t, err)

	fresh, err := datalog.Parse([]byte("fresh(\"y\")\nderived(x) :- fresh(x)"))
	require.NoError(t, err)
	require.NoError(t, rt.Define(DefaultPolicy, fresh))

	tables, err := rt.DefinedTables(DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, []string{"derived", "fresh"}, tables)
}
