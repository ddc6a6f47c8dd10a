// Package cypher implements the query language of the engine: a lexer, a
// recursive-descent parser producing a small tagged AST, and an executor
// that applies clauses to the graph through a per-query binding
// environment.
//
// The language is a Cypher subset: CREATE, MATCH, WHERE, SET, DELETE and
// RETURN over single-node and single-relationship patterns, with integer,
// string and boolean property literals.
package cypher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrParse is the sentinel wrapped by all lexer and parser errors.
var ErrParse = errors.New("cypher: parse error")

// TokenType classifies a lexed token.
type TokenType uint8

const (
	TokenKeyword TokenType = iota
	TokenIdentifier
	TokenString
	TokenNumber
	TokenSymbol
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenKeyword:
		return "keyword"
	case TokenIdentifier:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenSymbol:
		return "symbol"
	case TokenEOF:
		return "EOF"
	default:
		return "unknown"
	}
}

// Token is one lexed unit. Pos is the byte offset of the token's first
// character in the query text (len(input) for EOF), used in parser errors.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// keywords are matched case-insensitively; the token keeps the original
// casing from the query text.
var keywords = map[string]bool{
	"CREATE": true,
	"MATCH":  true,
	"WHERE":  true,
	"SET":    true,
	"DELETE": true,
	"RETURN": true,
}

// Tokenize lexes a query into a token stream terminated by an EOF token.
//
// Strings are double-quoted with no escape sequences; an unterminated
// string is an error. Numbers are unsigned integer digit runs. Characters
// outside the language are skipped with a warning rather than failing the
// whole query.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	pos := 0
	for pos < len(input) {
		c := input[pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			pos++

		case isLetter(c):
			start := pos
			for pos < len(input) && isIdentChar(input[pos]) {
				pos++
			}
			word := input[start:pos]
			typ := TokenIdentifier
			if keywords[strings.ToUpper(word)] {
				typ = TokenKeyword
			}
			tokens = append(tokens, Token{Type: typ, Value: word, Pos: start})

		case c == '"':
			start := pos
			pos++
			strStart := pos
			for pos < len(input) && input[pos] != '"' {
				pos++
			}
			if pos >= len(input) {
				return nil, fmt.Errorf("%w: unterminated string at position %d", ErrParse, start)
			}
			tokens = append(tokens, Token{Type: TokenString, Value: input[strStart:pos], Pos: start})
			pos++ // closing quote

		case isDigit(c):
			start := pos
			for pos < len(input) && isDigit(input[pos]) {
				pos++
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: input[start:pos], Pos: start})

		case c == '-' && pos+1 < len(input) && input[pos+1] == '>':
			tokens = append(tokens, Token{Type: TokenSymbol, Value: "->", Pos: pos})
			pos += 2

		case isSymbol(c):
			tokens = append(tokens, Token{Type: TokenSymbol, Value: string(c), Pos: pos})
			pos++

		default:
			logrus.WithFields(logrus.Fields{
				"char":     string(c),
				"position": pos,
			}).Warn("skipping unexpected character in query")
			pos++
		}
	}
	tokens = append(tokens, Token{Type: TokenEOF, Pos: len(input)})
	return tokens, nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

func isSymbol(c byte) bool {
	switch c {
	case '(', ')', '{', '}', ':', ',', '=', '-', '[', ']', '.':
		return true
	}
	return false
}
