package cypher

// ASTKind tags the variant of an ASTNode.
type ASTKind uint8

const (
	ASTQuery ASTKind = iota
	ASTCreate
	ASTMatch
	ASTWhere
	ASTSet
	ASTDelete
	ASTReturn
	ASTPattern     // children: node [, relationship, node]
	ASTNodePattern // Value: variable (may be empty); children: labels, then properties
	ASTRelPattern  // Value: variable (may be empty); children: optional type, then properties
	ASTLabel       // Value: label name
	ASTRelType     // Value: relationship type name
	ASTProperty    // children: key+literal (pattern form) or var+key+literal (assignment form)
	ASTIdentifier  // Value: name
	ASTLiteral     // Value: raw text; children[0]: type tag
	ASTTypeTag     // Value: "int" | "string" | "bool"
)

func (k ASTKind) String() string {
	switch k {
	case ASTQuery:
		return "query"
	case ASTCreate:
		return "create"
	case ASTMatch:
		return "match"
	case ASTWhere:
		return "where"
	case ASTSet:
		return "set"
	case ASTDelete:
		return "delete"
	case ASTReturn:
		return "return"
	case ASTPattern:
		return "pattern"
	case ASTNodePattern:
		return "node-pattern"
	case ASTRelPattern:
		return "rel-pattern"
	case ASTLabel:
		return "label"
	case ASTRelType:
		return "rel-type"
	case ASTProperty:
		return "property"
	case ASTIdentifier:
		return "identifier"
	case ASTLiteral:
		return "literal"
	case ASTTypeTag:
		return "type-tag"
	default:
		return "unknown"
	}
}

// ASTNode is the uniform syntax-tree node. Kind selects the variant, Value
// carries the node's text payload (variable name, label, literal text) and
// Children the sub-structure.
//
// Property nodes come in two shapes: the pattern form `{key: literal}` has
// two children (key identifier, literal), and the assignment form
// `var.key = literal` used by SET and WHERE has three (variable, key,
// literal). Every literal node has exactly one child, a type tag naming
// the literal's type ("int", "string" or "bool"); the executor recovers
// typed values from this tag rather than re-guessing from the text.
type ASTNode struct {
	Kind     ASTKind
	Value    string
	Children []*ASTNode
}

// Literal type tags.
const (
	TagInt    = "int"
	TagString = "string"
	TagBool   = "bool"
)

func newLiteral(tag, text string) *ASTNode {
	return &ASTNode{
		Kind:     ASTLiteral,
		Value:    text,
		Children: []*ASTNode{{Kind: ASTTypeTag, Value: tag}},
	}
}

// TypeTag returns the literal's type tag. Only meaningful on ASTLiteral
// nodes.
func (n *ASTNode) TypeTag() string {
	if n.Kind != ASTLiteral || len(n.Children) == 0 {
		return ""
	}
	return n.Children[0].Value
}
