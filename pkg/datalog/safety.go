package datalog

import "fmt"

// SafetyErrors returns the safety violations of a rule. A rule is safe when
// every head variable appears in a positive body literal and every variable
// of a negated literal appears in a positive literal, so negation-as-failure
// only ever tests ground atoms.
func SafetyErrors(r Rule) []error {
	var errs []error

	bound := map[Variable]struct{}{}
	for _, l := range r.Positives() {
		for _, v := range l.Variables() {
			bound[v] = struct{}{}
		}
	}

	for _, v := range r.Head.Variables() {
		if _, ok := bound[v]; !ok {
			errs = append(errs, &SafetyError{Rule: r, Message: fmt.Sprintf(
				"head variable %s does not appear in any positive body literal", v.Name)})
		}
	}
	for _, l := range r.Negatives() {
		for _, v := range l.Variables() {
			if _, ok := bound[v]; !ok {
				errs = append(errs, &SafetyError{Rule: r, Message: fmt.Sprintf(
					"variable %s of negated literal %s does not appear in any positive literal",
					v.Name, l.String())})
			}
		}
	}
	return errs
}

// IsSafe reports whether the rule passes all safety checks.
func IsSafe(r Rule) bool { return len(SafetyErrors(r)) == 0 }

// ReorderForSafety rewrites the rule body so that positive literals run
// first, in their original order, followed by negated literals. By the time
// a negated subgoal is reached during top-down evaluation all its variables
// are bound.
func ReorderForSafety(r Rule) Rule {
	if r.IsFact() {
		return r
	}
	body := make([]Literal, 0, len(r.Body))
	body = append(body, r.Positives()...)
	body = append(body, r.Negatives()...)
	r.Body = body
	return r
}
