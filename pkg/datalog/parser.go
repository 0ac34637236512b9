package datalog

import (
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

// Parse parses rule text into a list of rules. Rules need no terminator: a
// rule ends where the next head begins, so the multi-line layout of typical
// policy files parses naturally.
func Parse(src []byte) ([]Rule, error) {
	cursor := parsly.NewCursor("", src, 0)
	var rules []Rule
	for {
		skipSpace(cursor)
		if cursor.Pos >= cursor.InputSize {
			return rules, nil
		}
		rule, err := parseRule(cursor)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
}

// ParseRule parses exactly one rule.
func ParseRule(src string) (Rule, error) {
	rules, err := Parse([]byte(src))
	if err != nil {
		return Rule{}, err
	}
	if len(rules) != 1 {
		return Rule{}, &ParseError{Line: 1, Column: 1,
			Message: "expected exactly one rule, got " + strconv.Itoa(len(rules))}
	}
	return rules[0], nil
}

// ParseAtom parses a single positive atom, the form queries take.
func ParseAtom(src string) (Literal, error) {
	cursor := parsly.NewCursor("", []byte(src), 0)
	skipSpace(cursor)
	lit, err := parseLiteral(cursor)
	if err != nil {
		return Literal{}, err
	}
	if lit.Negated {
		return Literal{}, errorAt(cursor, cursor.Pos, "query atom must not be negated", nil)
	}
	skipSpace(cursor)
	if cursor.Pos < cursor.InputSize {
		return Literal{}, errorAt(cursor, cursor.Pos, "unexpected trailing input after atom", nil)
	}
	return lit, nil
}

func parseRule(cursor *parsly.Cursor) (Rule, error) {
	headPos := cursor.Pos
	head, err := parseLiteral(cursor)
	if err != nil {
		return Rule{}, err
	}
	if head.Negated {
		return Rule{}, errorAt(cursor, headPos, "rule head must not be negated", nil)
	}

	rule := Rule{Head: head, Line: lineAt(cursor, headPos)}

	skipSpace(cursor)
	pos := cursor.Pos
	if matched := cursor.MatchOne(impliesToken); matched.Code != impliesCode {
		cursor.Pos = pos
		if !head.IsGround() {
			return Rule{}, errorAt(cursor, headPos, "fact contains variables", nil)
		}
		return rule, nil
	}

	for {
		skipSpace(cursor)
		lit, err := parseLiteral(cursor)
		if err != nil {
			return Rule{}, err
		}
		rule.Body = append(rule.Body, lit)

		skipSpace(cursor)
		pos := cursor.Pos
		if matched := cursor.MatchOne(commaToken); matched.Code != commaCode {
			cursor.Pos = pos
			return rule, nil
		}
	}
}

func parseLiteral(cursor *parsly.Cursor) (Literal, error) {
	skipSpace(cursor)
	pos := cursor.Pos
	matched := cursor.MatchOne(identifierToken)
	if matched.Code != identifierCode {
		return Literal{}, errorAt(cursor, pos, "expected table name", cursor.NewError(identifierToken))
	}
	name := matched.Text(cursor)

	lit := Literal{}
	if name == "not" {
		lit.Negated = true
		skipSpace(cursor)
		pos = cursor.Pos
		matched = cursor.MatchOne(identifierToken)
		if matched.Code != identifierCode {
			return Literal{}, errorAt(cursor, pos, "expected table name after not", cursor.NewError(identifierToken))
		}
		name = matched.Text(cursor)
	}
	lit.Table = name

	// A ':' right after the name qualifies it with a service prefix, unless
	// it opens the ':-' separator.
	pos = cursor.Pos
	if matched := cursor.MatchOne(impliesToken); matched.Code == impliesCode {
		cursor.Pos = pos
	} else if matched := cursor.MatchOne(colonToken); matched.Code == colonCode {
		tblPos := cursor.Pos
		matched = cursor.MatchOne(identifierToken)
		if matched.Code != identifierCode {
			return Literal{}, errorAt(cursor, tblPos, "expected table name after service prefix", cursor.NewError(identifierToken))
		}
		lit.Service = lit.Table
		lit.Table = matched.Text(cursor)
	} else {
		cursor.Pos = pos
	}

	pos = cursor.Pos
	if matched := cursor.MatchOne(openParenToken); matched.Code != openParenCode {
		// Bare atom without arguments.
		cursor.Pos = pos
		return lit, nil
	}

	skipSpace(cursor)
	pos = cursor.Pos
	if matched := cursor.MatchOne(closeParenToken); matched.Code == closeParenCode {
		return lit, nil
	}
	cursor.Pos = pos

	for {
		term, err := parseTerm(cursor)
		if err != nil {
			return Literal{}, err
		}
		lit.Args = append(lit.Args, term)

		skipSpace(cursor)
		pos = cursor.Pos
		matched = cursor.MatchAny(commaToken, closeParenToken)
		switch matched.Code {
		case commaCode:
			skipSpace(cursor)
		case closeParenCode:
			return lit, nil
		default:
			return Literal{}, errorAt(cursor, pos, "expected ',' or ')' in argument list",
				cursor.NewError(commaToken, closeParenToken))
		}
	}
}

func parseTerm(cursor *parsly.Cursor) (Term, error) {
	skipSpace(cursor)
	pos := cursor.Pos
	matched := cursor.MatchAny(stringToken, numberToken, identifierToken)
	switch matched.Code {
	case stringCode:
		text := matched.Text(cursor)
		value, err := strconv.Unquote(text)
		if err != nil {
			return nil, errorAt(cursor, pos, "invalid string constant "+text, err)
		}
		return String{Value: value}, nil
	case numberCode:
		text := matched.Text(cursor)
		if strings.Contains(text, ".") {
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errorAt(cursor, pos, "invalid float constant "+text, err)
			}
			return Float{Value: value}, nil
		}
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errorAt(cursor, pos, "invalid integer constant "+text, err)
		}
		return Int{Value: value}, nil
	case identifierCode:
		return Variable{Name: matched.Text(cursor)}, nil
	default:
		return nil, errorAt(cursor, pos, "expected term",
			cursor.NewError(stringToken, numberToken, identifierToken))
	}
}

// skipSpace consumes whitespace and comments.
func skipSpace(cursor *parsly.Cursor) {
	for {
		pos := cursor.Pos
		matched := cursor.MatchAny(whitespaceToken, commentToken)
		if matched.Code != whitespaceCode && matched.Code != commentCode {
			cursor.Pos = pos
			return
		}
	}
}

// lineAt returns the 1-based line number of pos.
func lineAt(cursor *parsly.Cursor, pos int) int {
	line := 1
	for i := 0; i < pos && i < cursor.InputSize; i++ {
		if cursor.Input[i] == '\n' {
			line++
		}
	}
	return line
}

// columnAt returns the 1-based column number of pos.
func columnAt(cursor *parsly.Cursor, pos int) int {
	col := 1
	for i := 0; i < pos && i < cursor.InputSize; i++ {
		if cursor.Input[i] == '\n' {
			col = 1
		} else {
			col++
		}
	}
	return col
}

func errorAt(cursor *parsly.Cursor, pos int, message string, err error) error {
	return &ParseError{
		Line:    lineAt(cursor, pos),
		Column:  columnAt(cursor, pos),
		Message: message,
		Err:     err,
	}
}
