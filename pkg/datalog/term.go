package datalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Term is an argument of a literal: a variable or a constant.
// The concrete types are Variable, String, Int, and Float.
type Term interface {
	fmt.Stringer

	// Equal reports structural equality with another term.
	Equal(other Term) bool

	isTerm()
}

// Variable is a named placeholder bound during evaluation.
// Any unquoted identifier in rule text is a variable.
type Variable struct {
	Name string
}

func (v Variable) isTerm() {}

// String returns the variable name.
func (v Variable) String() string { return v.Name }

// Equal reports whether other is the same variable.
func (v Variable) Equal(other Term) bool {
	o, ok := other.(Variable)
	return ok && o.Name == v.Name
}

// String is a quoted string constant.
type String struct {
	Value string
}

func (s String) isTerm() {}

// String returns the quoted form of the constant.
func (s String) String() string { return strconv.Quote(s.Value) }

// Equal reports whether other is the same string constant.
func (s String) Equal(other Term) bool {
	o, ok := other.(String)
	return ok && o.Value == s.Value
}

// Int is an integer constant.
type Int struct {
	Value int64
}

func (i Int) isTerm() {}

// String returns the decimal form of the constant.
func (i Int) String() string { return strconv.FormatInt(i.Value, 10) }

// Equal reports whether other is the same integer constant.
func (i Int) Equal(other Term) bool {
	o, ok := other.(Int)
	return ok && o.Value == i.Value
}

// Float is a floating point constant.
type Float struct {
	Value float64
}

func (f Float) isTerm() {}

// String returns the decimal form of the constant.
func (f Float) String() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// Equal reports whether other is the same float constant.
func (f Float) Equal(other Term) bool {
	o, ok := other.(Float)
	return ok && o.Value == f.Value
}

// IsConstant reports whether t is a ground term.
func IsConstant(t Term) bool {
	_, ok := t.(Variable)
	return !ok
}

// Fact is a ground tuple belonging to a table, the unit datasources publish.
type Fact struct {
	Table string `json:"table"`
	Tuple []Term `json:"tuple"`
}

// NewFact builds a fact from plain Go values. Strings become string
// constants, integer and float kinds their numeric constants.
func NewFact(table string, values ...interface{}) (Fact, error) {
	tuple := make([]Term, 0, len(values))
	for _, v := range values {
		switch x := v.(type) {
		case string:
			tuple = append(tuple, String{Value: x})
		case int:
			tuple = append(tuple, Int{Value: int64(x)})
		case int64:
			tuple = append(tuple, Int{Value: x})
		case float64:
			tuple = append(tuple, Float{Value: x})
		case bool:
			tuple = append(tuple, String{Value: strconv.FormatBool(x)})
		case Term:
			if !IsConstant(x) {
				return Fact{}, fmt.Errorf("fact %s: argument %v is not ground", table, x)
			}
			tuple = append(tuple, x)
		default:
			return Fact{}, fmt.Errorf("fact %s: unsupported value type %T", table, v)
		}
	}
	return Fact{Table: table, Tuple: tuple}, nil
}

// Atom returns the fact as a ground literal.
func (f Fact) Atom() Literal {
	service, table := SplitTableName(f.Table)
	return Literal{Service: service, Table: table, Args: f.Tuple}
}

// Rule returns the fact as a bodyless rule.
func (f Fact) Rule() Rule {
	return Rule{Head: f.Atom()}
}

// String renders the fact in rule syntax.
func (f Fact) String() string {
	args := make([]string, len(f.Tuple))
	for i, t := range f.Tuple {
		args[i] = t.String()
	}
	return f.Table + "(" + strings.Join(args, ", ") + ")"
}

// SplitTableName splits a possibly namespaced table name into its service
// prefix and bare table name. The service is empty for local tables.
func SplitTableName(name string) (service, table string) {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
