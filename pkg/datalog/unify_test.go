package datalog

import "testing"

func TestBindings_Unify(t *testing.T) {
	x := Variable{Name: "x"}
	y := Variable{Name: "y"}

	b := NewBindings()
	if !b.Unify(x, String{Value: "a"}) {
		t.Fatal("Variable should unify with constant")
	}
	if got := b.Resolve(x); !got.Equal(String{Value: "a"}) {
		t.Errorf("Expected x bound to \"a\", got %v", got)
	}

	// Chained: y -> x -> "a"
	if !b.Unify(y, x) {
		t.Fatal("Variable should unify with bound variable")
	}
	if got := b.Resolve(y); !got.Equal(String{Value: "a"}) {
		t.Errorf("Expected y to resolve through x to \"a\", got %v", got)
	}

	if b.Unify(String{Value: "a"}, String{Value: "b"}) {
		t.Error("Distinct constants must not unify")
	}
	if !b.Unify(Int{Value: 3}, Int{Value: 3}) {
		t.Error("Identical constants must unify")
	}
}

func TestBindings_UnifyAtoms(t *testing.T) {
	goal, err := ParseAtom(`nova:network("vm-1", net)`)
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	head, err := ParseAtom(`nova:network(vm, "net-9")`)
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}

	b := NewBindings()
	if !b.UnifyAtoms(goal, head) {
		t.Fatal("Atoms should unify")
	}
	if got := b.Resolve(Variable{Name: "net"}); !got.Equal(String{Value: "net-9"}) {
		t.Errorf("Expected net bound to \"net-9\", got %v", got)
	}
	if got := b.Resolve(Variable{Name: "vm"}); !got.Equal(String{Value: "vm-1"}) {
		t.Errorf("Expected vm bound to \"vm-1\", got %v", got)
	}

	other, _ := ParseAtom(`neutron:network("vm-1", net)`)
	if NewBindings().UnifyAtoms(goal, other) {
		t.Error("Atoms from different services must not unify")
	}

	short, _ := ParseAtom(`nova:network(vm)`)
	if NewBindings().UnifyAtoms(goal, short) {
		t.Error("Atoms with different arity must not unify")
	}
}

func TestPlugRule(t *testing.T) {
	rule, err := ParseRule(`p(x, y) :- q(x), not r(y)`)
	if err != nil {
		t.Fatalf("ParseRule failed: %v", err)
	}

	b := NewBindings()
	b[Variable{Name: "x"}] = String{Value: "a"}

	plugged := b.PlugRule(rule)
	if got := plugged.Head.Args[0]; !got.Equal(String{Value: "a"}) {
		t.Errorf("Expected head arg \"a\", got %v", got)
	}
	if got := plugged.Head.Args[1]; !got.Equal(Variable{Name: "y"}) {
		t.Errorf("Expected unbound y to survive, got %v", got)
	}
	// Original must be untouched.
	if !rule.Head.Args[0].Equal(Variable{Name: "x"}) {
		t.Error("PlugRule must not mutate its input")
	}
}

func TestRenameRule(t *testing.T) {
	rule, err := ParseRule(`p(x, y) :- q(x, y), not r(y)`)
	if err != nil {
		t.Fatalf("ParseRule failed: %v", err)
	}

	counter := 0
	renamed := RenameRule(rule, &counter)
	if counter != 2 {
		t.Errorf("Expected counter advanced by 2, got %d", counter)
	}
	for _, v := range renamed.Variables() {
		if v.Name == "x" || v.Name == "y" {
			t.Errorf("Variable %s should have been renamed", v.Name)
		}
	}
	// Shape preserved: shared variables stay shared.
	if !renamed.Head.Args[0].Equal(renamed.Body[0].Args[0]) {
		t.Error("Renaming must preserve variable sharing")
	}

	again := RenameRule(rule, &counter)
	if renamed.Head.Args[0].Equal(again.Head.Args[0]) {
		t.Error("Successive renames must produce fresh variables")
	}
}
