package datalog

import (
	"strings"
)

// Literal is a possibly negated atom: `[not] [service:]table(args)`.
type Literal struct {
	// Service is the datasource namespace prefix, empty for local tables.
	Service string `json:"service,omitempty"`

	// Table is the bare table name.
	Table string `json:"table"`

	// Args are the literal arguments in order.
	Args []Term `json:"args"`

	// Negated marks a negation-as-failure literal.
	Negated bool `json:"negated,omitempty"`
}

// TableName returns the fully qualified table name, including the service
// prefix when present.
func (l Literal) TableName() string {
	if l.Service == "" {
		return l.Table
	}
	return l.Service + ":" + l.Table
}

// Arity returns the number of arguments.
func (l Literal) Arity() int { return len(l.Args) }

// IsGround reports whether the literal contains no variables.
func (l Literal) IsGround() bool {
	for _, t := range l.Args {
		if !IsConstant(t) {
			return false
		}
	}
	return true
}

// Variables returns the distinct variables of the literal in first-occurrence
// order.
func (l Literal) Variables() []Variable {
	var vars []Variable
	seen := map[Variable]struct{}{}
	for _, t := range l.Args {
		if v, ok := t.(Variable); ok {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// Complement returns the literal with its negation flipped.
func (l Literal) Complement() Literal {
	l.Negated = !l.Negated
	return l
}

// Equal reports structural equality with another literal.
func (l Literal) Equal(other Literal) bool {
	if l.Service != other.Service || l.Table != other.Table ||
		l.Negated != other.Negated || len(l.Args) != len(other.Args) {
		return false
	}
	for i := range l.Args {
		if !l.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// String renders the literal in rule syntax.
func (l Literal) String() string {
	var b strings.Builder
	if l.Negated {
		b.WriteString("not ")
	}
	b.WriteString(l.TableName())
	if len(l.Args) > 0 {
		b.WriteByte('(')
		for i, t := range l.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Fact converts a ground positive literal into a Fact. It returns false when
// the literal is negated or contains variables.
func (l Literal) Fact() (Fact, bool) {
	if l.Negated || !l.IsGround() {
		return Fact{}, false
	}
	return Fact{Table: l.TableName(), Tuple: l.Args}, true
}

// Rule is a clause `head :- body`. A rule with an empty body is a fact.
type Rule struct {
	Head Literal   `json:"head"`
	Body []Literal `json:"body,omitempty"`

	// Line is the 1-based source line of the rule head, zero for rules built
	// programmatically.
	Line int `json:"line,omitempty"`
}

// NewFactRule wraps a ground atom as a bodyless rule.
func NewFactRule(head Literal) Rule {
	return Rule{Head: head}
}

// IsFact reports whether the rule has no body.
func (r Rule) IsFact() bool { return len(r.Body) == 0 }

// Variables returns the distinct variables of head and body in
// first-occurrence order.
func (r Rule) Variables() []Variable {
	var vars []Variable
	seen := map[Variable]struct{}{}
	add := func(l Literal) {
		for _, v := range l.Variables() {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				vars = append(vars, v)
			}
		}
	}
	add(r.Head)
	for _, l := range r.Body {
		add(l)
	}
	return vars
}

// Positives returns the non-negated body literals in order.
func (r Rule) Positives() []Literal {
	var out []Literal
	for _, l := range r.Body {
		if !l.Negated {
			out = append(out, l)
		}
	}
	return out
}

// Negatives returns the negated body literals in order.
func (r Rule) Negatives() []Literal {
	var out []Literal
	for _, l := range r.Body {
		if l.Negated {
			out = append(out, l)
		}
	}
	return out
}

// Tables returns the distinct fully qualified table names referenced by the
// rule, head included.
func (r Rule) Tables() []string {
	var tables []string
	seen := map[string]struct{}{}
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
	}
	add(r.Head.TableName())
	for _, l := range r.Body {
		add(l.TableName())
	}
	return tables
}

// Equal reports structural equality with another rule. Line numbers are
// ignored so that the same rule loaded from different places dedups.
func (r Rule) Equal(other Rule) bool {
	if !r.Head.Equal(other.Head) || len(r.Body) != len(other.Body) {
		return false
	}
	for i := range r.Body {
		if !r.Body[i].Equal(other.Body[i]) {
			return false
		}
	}
	return true
}

// String renders the rule in rule syntax.
func (r Rule) String() string {
	if r.IsFact() {
		return r.Head.String()
	}
	parts := make([]string, len(r.Body))
	for i, l := range r.Body {
		parts[i] = l.String()
	}
	return r.Head.String() + " :- " + strings.Join(parts, ", ")
}
