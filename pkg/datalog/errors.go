package datalog

import "fmt"

// ParseError reports a syntax error with its source position.
type ParseError struct {
	// Line and Column locate the error, 1-based.
	Line   int
	Column int

	// Message describes what the parser expected.
	Message string

	// Err is the underlying tokenizer error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d:%d: %s: %v", e.Line, e.Column, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ParseError) Unwrap() error { return e.Err }

// SafetyError reports a rule that violates the safety requirements for
// nonrecursive evaluation.
type SafetyError struct {
	// Rule is the offending rule.
	Rule Rule

	// Message describes the violation.
	Message string
}

// Error implements the error interface.
func (e *SafetyError) Error() string {
	return fmt.Sprintf("unsafe rule %q: %s", e.Rule.String(), e.Message)
}
