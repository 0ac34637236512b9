package datalog

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	commentCode
	identifierCode
	numberCode
	stringCode
	impliesCode
	colonCode
	commaCode
	openParenCode
	closeParenCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	commentToken    = parsly.NewToken(commentCode, "Comment", &commentMatcher{})
	identifierToken = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	stringToken     = parsly.NewToken(stringCode, "String", &stringMatcher{})
	impliesToken    = parsly.NewToken(impliesCode, ":-", &impliesMatcher{})
	colonToken      = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	commaToken      = parsly.NewToken(commaCode, ",", matcher.NewByte(','))
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
)

// identifierMatcher matches table, service, and variable names. Dots are
// allowed after the first character so datasource tables like
// "servers.addresses" lex as one name.
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' || input[i] == '.' {
			matched++
			continue
		}
		break
	}
	return matched
}

// commentMatcher matches `#` and `//` comments through end of line.
type commentMatcher struct{}

func (m *commentMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	switch {
	case input[pos] == '#':
	case input[pos] == '/' && pos+1 < size && input[pos+1] == '/':
	default:
		return 0
	}

	matched := 0
	for i := pos; i < size; i++ {
		if input[i] == '\n' {
			break
		}
		matched++
	}
	return matched
}

// numberMatcher matches integer and float constants with an optional leading
// minus sign.
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	matched := 0
	i := pos
	if input[i] == '-' {
		matched++
		i++
	}
	digits := 0
	for ; i < size && isDigit(input[i]); i++ {
		matched++
		digits++
	}
	if digits == 0 {
		return 0
	}
	if i < size && input[i] == '.' && i+1 < size && isDigit(input[i+1]) {
		matched++
		i++
		for ; i < size && isDigit(input[i]); i++ {
			matched++
		}
	}
	return matched
}

// stringMatcher matches double-quoted string constants with backslash
// escapes. The quotes are part of the match.
type stringMatcher struct{}

func (m *stringMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size || input[pos] != '"' {
		return 0
	}
	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			i++
		case '"':
			return i - pos + 1
		case '\n':
			return 0
		}
	}
	return 0
}

// impliesMatcher matches the `:-` rule separator.
type impliesMatcher struct{}

func (m *impliesMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize {
		return 0
	}
	if input[pos] == ':' && input[pos+1] == '-' {
		return 2
	}
	return 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
