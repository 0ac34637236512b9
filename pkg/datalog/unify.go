package datalog

import "strconv"

// Bindings is a substitution from variables to terms. Bound terms may
// themselves be variables, so lookups chase chains via Resolve.
type Bindings map[Variable]Term

// NewBindings returns an empty substitution.
func NewBindings() Bindings { return Bindings{} }

// Clone returns a copy that can diverge from the receiver.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Resolve chases variable chains and returns the most concrete form of t.
func (b Bindings) Resolve(t Term) Term {
	for {
		v, ok := t.(Variable)
		if !ok {
			return t
		}
		bound, ok := b[v]
		if !ok {
			return t
		}
		t = bound
	}
}

// Unify extends the substitution so that x and y become equal. It returns
// false, leaving b untouched, when the terms cannot unify.
func (b Bindings) Unify(x, y Term) bool {
	x = b.Resolve(x)
	y = b.Resolve(y)
	if x.Equal(y) {
		return true
	}
	if v, ok := x.(Variable); ok {
		b[v] = y
		return true
	}
	if v, ok := y.(Variable); ok {
		b[v] = x
		return true
	}
	return false
}

// UnifyAtoms extends the substitution so that the two atoms become equal.
// Negation flags are ignored; callers compare tables of the appropriate sign.
// On failure b is left with partial bindings, so unify against a clone when
// backtracking.
func (b Bindings) UnifyAtoms(x, y Literal) bool {
	if x.Service != y.Service || x.Table != y.Table || len(x.Args) != len(y.Args) {
		return false
	}
	for i := range x.Args {
		if !b.Unify(x.Args[i], y.Args[i]) {
			return false
		}
	}
	return true
}

// PlugLiteral applies the substitution to every argument of l.
func (b Bindings) PlugLiteral(l Literal) Literal {
	if len(l.Args) == 0 {
		return l
	}
	args := make([]Term, len(l.Args))
	for i, t := range l.Args {
		args[i] = b.Resolve(t)
	}
	l.Args = args
	return l
}

// PlugRule applies the substitution to the head and every body literal.
func (b Bindings) PlugRule(r Rule) Rule {
	r.Head = b.PlugLiteral(r.Head)
	if len(r.Body) > 0 {
		body := make([]Literal, len(r.Body))
		for i, l := range r.Body {
			body[i] = b.PlugLiteral(l)
		}
		r.Body = body
	}
	return r
}

// RenameRule standardizes the rule apart by giving every variable a fresh
// name derived from counter. The counter is advanced so successive calls
// never collide.
func RenameRule(r Rule, counter *int) Rule {
	vars := r.Variables()
	if len(vars) == 0 {
		return r
	}
	renaming := make(Bindings, len(vars))
	for _, v := range vars {
		renaming[v] = Variable{Name: "_v" + strconv.Itoa(*counter)}
		*counter++
	}
	return renaming.PlugRule(r)
}
