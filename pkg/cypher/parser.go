package cypher

import (
	"fmt"
	"strings"
)

// Parser is a recursive-descent parser over a token stream. Each rule
// fails fast with the offending token and its byte position; no recovery
// is attempted.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse tokenizes and parses a query in one step.
func Parse(query string) (*ASTNode, error) {
	tokens, err := Tokenize(query)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseQuery()
}

// NewParser creates a parser over an already-lexed token stream. The
// stream must be EOF-terminated (Tokenize guarantees this).
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) current() Token { return p.tokens[p.pos] }

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) errUnexpected() error {
	tok := p.current()
	name := tok.Value
	if tok.Type == TokenEOF {
		name = "EOF"
	}
	return fmt.Errorf("%w: unexpected token %q at position %d", ErrParse, name, tok.Pos)
}

func (p *Parser) expectSymbol(sym string) error {
	tok := p.current()
	if tok.Type != TokenSymbol || tok.Value != sym {
		return p.errUnexpected()
	}
	p.advance()
	return nil
}

func (p *Parser) atSymbol(sym string) bool {
	tok := p.current()
	return tok.Type == TokenSymbol && tok.Value == sym
}

func (p *Parser) identifier() (string, error) {
	tok := p.current()
	if tok.Type != TokenIdentifier {
		return "", p.errUnexpected()
	}
	p.advance()
	return tok.Value, nil
}

// ParseQuery parses one or more clauses terminated by EOF. An empty query
// is an error.
func (p *Parser) ParseQuery() (*ASTNode, error) {
	query := &ASTNode{Kind: ASTQuery}
	if p.current().Type == TokenEOF {
		return nil, fmt.Errorf("%w: empty query", ErrParse)
	}
	for p.current().Type != TokenEOF {
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		query.Children = append(query.Children, clause)
	}
	return query, nil
}

func (p *Parser) parseClause() (*ASTNode, error) {
	tok := p.current()
	if tok.Type != TokenKeyword {
		return nil, p.errUnexpected()
	}
	switch strings.ToUpper(tok.Value) {
	case "CREATE":
		p.advance()
		return p.parsePatternClause(ASTCreate)
	case "MATCH":
		p.advance()
		return p.parsePatternClause(ASTMatch)
	case "WHERE":
		p.advance()
		return p.parseWhere()
	case "SET":
		p.advance()
		return p.parseSet()
	case "DELETE":
		p.advance()
		return p.parseIdentifierClause(ASTDelete)
	case "RETURN":
		p.advance()
		return p.parseIdentifierClause(ASTReturn)
	default:
		return nil, p.errUnexpected()
	}
}

// parsePatternClause parses the comma-separated pattern list shared by
// CREATE and MATCH.
func (p *Parser) parsePatternClause(kind ASTKind) (*ASTNode, error) {
	clause := &ASTNode{Kind: kind}
	for {
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		clause.Children = append(clause.Children, pattern)
		if !p.atSymbol(",") {
			return clause, nil
		}
		p.advance()
	}
}

// parsePattern parses `(node)` optionally followed by
// `-[rel]->(node)`.
func (p *Parser) parsePattern() (*ASTNode, error) {
	pattern := &ASTNode{Kind: ASTPattern}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pattern.Children = append(pattern.Children, node)

	if !p.atSymbol("-") {
		return pattern, nil
	}
	p.advance()

	rel, err := p.parseRelPattern()
	if err != nil {
		return nil, err
	}
	target, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pattern.Children = append(pattern.Children, rel, target)
	return pattern, nil
}

// parseNodePattern parses `( [var] [:Label] [{props}] )`.
func (p *Parser) parseNodePattern() (*ASTNode, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	node := &ASTNode{Kind: ASTNodePattern}

	if p.current().Type == TokenIdentifier {
		node.Value = p.advance().Value
	}
	if p.atSymbol(":") {
		p.advance()
		label, err := p.identifier()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, &ASTNode{Kind: ASTLabel, Value: label})
	}
	if p.atSymbol("{") {
		props, err := p.parsePropList()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, props...)
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseRelPattern parses `[ [var] [:Type] [{props}] ] ->`.
func (p *Parser) parseRelPattern() (*ASTNode, error) {
	if err := p.expectSymbol("["); err != nil {
		return nil, err
	}
	rel := &ASTNode{Kind: ASTRelPattern}

	if p.current().Type == TokenIdentifier {
		rel.Value = p.advance().Value
	}
	if p.atSymbol(":") {
		p.advance()
		relType, err := p.identifier()
		if err != nil {
			return nil, err
		}
		rel.Children = append(rel.Children, &ASTNode{Kind: ASTRelType, Value: relType})
	}
	if p.atSymbol("{") {
		props, err := p.parsePropList()
		if err != nil {
			return nil, err
		}
		rel.Children = append(rel.Children, props...)
	}
	if err := p.expectSymbol("]"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("->"); err != nil {
		return nil, err
	}
	return rel, nil
}

// parsePropList parses `{ key: literal , ... }` into property nodes with
// two children each (key, literal).
func (p *Parser) parsePropList() ([]*ASTNode, error) {
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var props []*ASTNode
	for {
		key, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		props = append(props, &ASTNode{
			Kind: ASTProperty,
			Children: []*ASTNode{
				{Kind: ASTIdentifier, Value: key},
				lit,
			},
		})
		if !p.atSymbol(",") {
			break
		}
		p.advance()
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return props, nil
}

// parseWhere parses `var.key = literal` into a three-child property node.
func (p *Parser) parseWhere() (*ASTNode, error) {
	assign, err := p.parsePropAssign()
	if err != nil {
		return nil, err
	}
	return &ASTNode{Kind: ASTWhere, Children: []*ASTNode{assign}}, nil
}

// parseSet parses a comma-separated list of `var.key = literal`.
func (p *Parser) parseSet() (*ASTNode, error) {
	clause := &ASTNode{Kind: ASTSet}
	for {
		assign, err := p.parsePropAssign()
		if err != nil {
			return nil, err
		}
		clause.Children = append(clause.Children, assign)
		if !p.atSymbol(",") {
			return clause, nil
		}
		p.advance()
	}
}

func (p *Parser) parsePropAssign() (*ASTNode, error) {
	variable, err := p.identifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("."); err != nil {
		return nil, err
	}
	key, err := p.identifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("="); err != nil {
		return nil, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &ASTNode{
		Kind: ASTProperty,
		Children: []*ASTNode{
			{Kind: ASTIdentifier, Value: variable},
			{Kind: ASTIdentifier, Value: key},
			lit,
		},
	}, nil
}

// parseIdentifierClause parses the comma-separated identifier list shared
// by DELETE and RETURN.
func (p *Parser) parseIdentifierClause(kind ASTKind) (*ASTNode, error) {
	clause := &ASTNode{Kind: kind}
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		clause.Children = append(clause.Children, &ASTNode{Kind: ASTIdentifier, Value: name})
		if !p.atSymbol(",") {
			return clause, nil
		}
		p.advance()
	}
}

// parseLiteral accepts a string, an integer, or a case-insensitive boolean
// and records its type tag for the executor.
func (p *Parser) parseLiteral() (*ASTNode, error) {
	tok := p.current()
	switch tok.Type {
	case TokenString:
		p.advance()
		return newLiteral(TagString, tok.Value), nil
	case TokenNumber:
		p.advance()
		return newLiteral(TagInt, tok.Value), nil
	case TokenIdentifier:
		if strings.EqualFold(tok.Value, "true") || strings.EqualFold(tok.Value, "false") {
			p.advance()
			return newLiteral(TagBool, tok.Value), nil
		}
	}
	return nil, p.errUnexpected()
}
