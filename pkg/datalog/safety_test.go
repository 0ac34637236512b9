package datalog

import "testing"

func TestSafetyErrors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		wantErrors int
	}{
		{"safe rule", `p(x) :- q(x), not r(x)`, 0},
		{"head variable unbound", `p(x, y) :- q(x)`, 1},
		{"negated variable unbound", `p(x) :- q(x), not r(y)`, 1},
		{"both unbound", `p(z) :- q(x), not r(y)`, 2},
		{"spec example", disconnectNetworkRule, 0},
		{"ground fact", `p("a")`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseRule(tt.src)
			if err != nil {
				t.Fatalf("ParseRule failed: %v", err)
			}
			errs := SafetyErrors(rule)
			if len(errs) != tt.wantErrors {
				t.Errorf("Expected %d safety errors, got %d: %v", tt.wantErrors, len(errs), errs)
			}
			if (len(errs) == 0) != IsSafe(rule) {
				t.Error("IsSafe disagrees with SafetyErrors")
			}
		})
	}
}

func TestReorderForSafety(t *testing.T) {
	rule, err := ParseRule(`p(x) :- not r(x), q(x), not s(x), t(x)`)
	if err != nil {
		t.Fatalf("ParseRule failed: %v", err)
	}

	reordered := ReorderForSafety(rule)
	if len(reordered.Body) != 4 {
		t.Fatalf("Reorder changed body length: %d", len(reordered.Body))
	}
	for i, l := range reordered.Body[:2] {
		if l.Negated {
			t.Errorf("Literal %d should be positive, got %s", i, l.String())
		}
	}
	for i, l := range reordered.Body[2:] {
		if !l.Negated {
			t.Errorf("Literal %d should be negated, got %s", i+2, l.String())
		}
	}
	// Relative order within each group is preserved.
	if reordered.Body[0].Table != "q" || reordered.Body[1].Table != "t" {
		t.Errorf("Positive literal order changed: %s", reordered.String())
	}
	if reordered.Body[2].Table != "r" || reordered.Body[3].Table != "s" {
		t.Errorf("Negated literal order changed: %s", reordered.String())
	}
}
