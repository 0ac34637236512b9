package policy

import (
	"testing"

	"github.com/radekpospisil/congress/pkg/datalog"
)

func parseRule(t *testing.T, text string) datalog.Rule {
	t.Helper()
	rule, err := datalog.ParseRule(text)
	if err != nil {
		t.Fatalf("ParseRule(%q) failed: %v", text, err)
	}
	return rule
}

func TestRuleSet_AddDiscard(t *testing.T) {
	rs := NewRuleSet()
	rule := parseRule(t, `p(x) :- q(x)`)

	if !rs.Add("p", rule) {
		t.Fatal("Expected first Add to change the set")
	}
	if rs.Add("p", rule) {
		t.Error("Expected duplicate Add to be rejected")
	}
	if rs.Len() != 1 {
		t.Errorf("Expected 1 rule, got %d", rs.Len())
	}
	if !rs.Contains("p", rule) {
		t.Error("Expected rule to be present")
	}

	if rs.Discard("p", parseRule(t, `p(x) :- r(x)`)) {
		t.Error("Expected Discard of absent rule to be a no-op")
	}
	if !rs.Discard("p", rule) {
		t.Fatal("Expected Discard to remove the rule")
	}
	if rs.HasTable("p") {
		t.Error("Expected empty table to be dropped")
	}
}

func TestRuleSet_Tables(t *testing.T) {
	rs := NewRuleSet()
	rs.Add("b", parseRule(t, `b("1")`))
	rs.Add("a", parseRule(t, `a("1")`))
	rs.Add("a", parseRule(t, `a("2")`))

	tables := rs.Tables()
	if len(tables) != 2 || tables[0] != "a" || tables[1] != "b" {
		t.Errorf("Expected sorted tables [a b], got %v", tables)
	}
	if got := len(rs.Get("a")); got != 2 {
		t.Errorf("Expected 2 rules for table a, got %d", got)
	}

	rs.ClearTable("a")
	if rs.HasTable("a") {
		t.Error("Expected table a to be cleared")
	}

	rs.Clear()
	if rs.Len() != 0 {
		t.Errorf("Expected empty set, got %d rules", rs.Len())
	}
}
