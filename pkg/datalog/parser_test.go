package datalog

import (
	"errors"
	"testing"
)

const disconnectNetworkRule = `
disconnect_network(vm, network) :-
  error(vm),
  nova:virtual_machine(vm),
  nova:network(vm, network),
  not neutron:public_network(network),
  neutron:owner(network, network_owner),
  nova:owner(vm, vm_owner),
  not same_group(network_owner, vm_owner)
`

func TestParse_DisconnectNetwork(t *testing.T) {
	rules, err := Parse([]byte(disconnectNetworkRule))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}

	rule := rules[0]
	if rule.Head.Table != "disconnect_network" {
		t.Errorf("Expected head table disconnect_network, got %s", rule.Head.Table)
	}
	if len(rule.Head.Args) != 2 {
		t.Errorf("Expected 2 head arguments, got %d", len(rule.Head.Args))
	}
	if len(rule.Body) != 7 {
		t.Fatalf("Expected 7 body literals, got %d", len(rule.Body))
	}

	negated := 0
	for _, l := range rule.Body {
		if l.Negated {
			negated++
		}
	}
	if negated != 2 {
		t.Errorf("Expected 2 negated literals, got %d", negated)
	}

	if rule.Body[1].Service != "nova" || rule.Body[1].Table != "virtual_machine" {
		t.Errorf("Expected nova:virtual_machine, got %s", rule.Body[1].TableName())
	}
	if !rule.Body[3].Negated || rule.Body[3].TableName() != "neutron:public_network" {
		t.Errorf("Expected negated neutron:public_network, got %s", rule.Body[3].String())
	}
	if rule.Line != 2 {
		t.Errorf("Expected rule on line 2, got %d", rule.Line)
	}
}

func TestParse_Multiple(t *testing.T) {
	src := `
# facts for tests
error("vm-1")
parent("alice", "bob")
ancestor(x, y) :- parent(x, y)
same_group(a, b) :- group(g, a), group(g, b)
`
	rules, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("Expected 4 rules, got %d", len(rules))
	}
	if !rules[0].IsFact() || !rules[1].IsFact() {
		t.Error("Expected first two rules to be facts")
	}
	if rules[2].IsFact() || rules[3].IsFact() {
		t.Error("Expected last two rules to have bodies")
	}
	if got := rules[1].Head.Args[0]; !got.Equal(String{Value: "alice"}) {
		t.Errorf("Expected string constant alice, got %v", got)
	}
}

func TestParse_Terms(t *testing.T) {
	rule, err := ParseRule(`p(x) :- q(x, "hello", 42, -7, 3.14)`)
	if err != nil {
		t.Fatalf("ParseRule failed: %v", err)
	}

	args := rule.Body[0].Args
	expected := []Term{
		Variable{Name: "x"},
		String{Value: "hello"},
		Int{Value: 42},
		Int{Value: -7},
		Float{Value: 3.14},
	}
	if len(args) != len(expected) {
		t.Fatalf("Expected %d args, got %d", len(expected), len(args))
	}
	for i, want := range expected {
		if !args[i].Equal(want) {
			t.Errorf("Arg %d: expected %v, got %v", i, want, args[i])
		}
	}
}

func TestParse_Comments(t *testing.T) {
	src := `
// c-style comment
p(x) :- q(x)  # trailing comment
q("a")
`
	rules, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed paren", `p(x :- q(x)`},
		{"missing body", `p(x) :- `},
		{"negated head", `not p(x) :- q(x)`},
		{"fact with variable", `p(x)`},
		{"bad string", `p("abc)`},
		{"dangling service", `p(x) :- nova:(x)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatalf("Expected parse error for %q", tt.src)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("Expected *ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestParseAtom(t *testing.T) {
	atom, err := ParseAtom(`nova:network(vm, "net-1")`)
	if err != nil {
		t.Fatalf("ParseAtom failed: %v", err)
	}
	if atom.Service != "nova" || atom.Table != "network" {
		t.Errorf("Unexpected atom table: %s", atom.TableName())
	}
	if len(atom.Args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(atom.Args))
	}

	if _, err := ParseAtom(`not p(x)`); err == nil {
		t.Error("Expected error for negated query atom")
	}
	if _, err := ParseAtom(`p(x) q(y)`); err == nil {
		t.Error("Expected error for trailing input")
	}
}

func TestRuleString_RoundTrip(t *testing.T) {
	tests := []string{
		`p(x) :- q(x, y), not r(y)`,
		`disconnect_network(vm, network) :- error(vm), nova:virtual_machine(vm)`,
		`flag("vm-1", 42)`,
	}
	for _, src := range tests {
		rule, err := ParseRule(src)
		if err != nil {
			t.Fatalf("ParseRule(%q) failed: %v", src, err)
		}
		again, err := ParseRule(rule.String())
		if err != nil {
			t.Fatalf("Reparse of %q failed: %v", rule.String(), err)
		}
		if !rule.Equal(again) {
			t.Errorf("Round trip changed rule: %q vs %q", rule.String(), again.String())
		}
	}
}
