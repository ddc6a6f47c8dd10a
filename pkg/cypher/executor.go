package cypher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aabr2612/KiteDB/pkg/graph"
	"github.com/aabr2612/KiteDB/pkg/storage"
)

// Executor errors.
var (
	ErrUnboundVariable = errors.New("cypher: variable is not bound")
	ErrMissingLabel    = errors.New("cypher: MATCH node pattern requires a label")
	ErrMissingRelType  = errors.New("cypher: relationship pattern requires a type")
	ErrBadLiteral      = errors.New("cypher: bad literal")
	ErrBindingKind     = errors.New("cypher: variable bound to a different kind")
)

// Row is one result row, keyed by RETURN identifier. Node values are maps
// with id, labels and properties; edge values add type, source and target.
type Row map[string]any

// BindingKind tags whether a variable is bound to nodes or edges.
type BindingKind uint8

const (
	BindNodes BindingKind = iota
	BindEdges
)

// Binding is a query variable's value: a list of nodes or a list of
// edges, selected by Kind. Lists preserve the order entities were bound
// in (creation order for CREATE, index order for MATCH).
type Binding struct {
	Kind  BindingKind
	Nodes []*storage.Node
	Edges []*storage.Edge
}

// Executor applies parsed queries to a graph manager. Each Execute call
// runs in its own transaction with a fresh binding environment; clauses
// execute in source order and share bindings through the environment.
//
// There is no rollback: a clause failing mid-query aborts the query but
// leaves earlier clauses' effects in place.
type Executor struct {
	mgr *graph.Manager
	log *logrus.Entry
}

// NewExecutor creates an executor over the given graph manager.
func NewExecutor(mgr *graph.Manager) *Executor {
	return &Executor{
		mgr: mgr,
		log: logrus.WithField("component", "executor"),
	}
}

// Execute runs a parsed query and returns its RETURN rows (nil when the
// query has no RETURN clause).
func (ex *Executor) Execute(query *ASTNode) ([]Row, error) {
	if query == nil || query.Kind != ASTQuery {
		return nil, fmt.Errorf("%w: expected a query node", ErrParse)
	}
	txn := ex.mgr.Begin()
	env := make(map[string]*Binding)
	var rows []Row

	for _, clause := range query.Children {
		var err error
		switch clause.Kind {
		case ASTCreate:
			err = ex.execCreate(txn, env, clause)
		case ASTMatch:
			err = ex.execMatch(env, clause)
		case ASTWhere:
			err = ex.execWhere(env, clause)
		case ASTSet:
			err = ex.execSet(txn, env, clause)
		case ASTDelete:
			err = ex.execDelete(txn, env, clause)
		case ASTReturn:
			rows, err = ex.execReturn(env, clause)
		default:
			err = fmt.Errorf("%w: unexpected clause %s", ErrParse, clause.Kind)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := ex.mgr.Commit(txn); err != nil {
		return nil, err
	}
	return rows, nil
}

func (ex *Executor) execCreate(txn uint64, env map[string]*Binding, clause *ASTNode) error {
	for _, pattern := range clause.Children {
		switch len(pattern.Children) {
		case 1:
			if err := ex.createNode(txn, env, pattern.Children[0]); err != nil {
				return err
			}
		case 3:
			if err := ex.createRelationship(txn, env, pattern); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: malformed pattern", ErrParse)
		}
	}
	return nil
}

func (ex *Executor) createNode(txn uint64, env map[string]*Binding, nodePat *ASTNode) error {
	labels, props, err := nodePatternParts(nodePat)
	if err != nil {
		return err
	}
	n, err := ex.mgr.AddNode(txn, labels, props)
	if err != nil {
		return err
	}
	if nodePat.Value != "" {
		if err := appendNode(env, nodePat.Value, n); err != nil {
			return err
		}
	}
	return nil
}

// createRelationship creates `(a)-[r:T]->(b)`, reusing an endpoint's bound
// node when its variable resolves to exactly one, and creating a fresh
// node from the endpoint pattern otherwise.
func (ex *Executor) createRelationship(txn uint64, env map[string]*Binding, pattern *ASTNode) error {
	srcPat, relPat, tgtPat := pattern.Children[0], pattern.Children[1], pattern.Children[2]

	relType, relProps, err := relPatternParts(relPat)
	if err != nil {
		return err
	}
	if relType == "" {
		return ErrMissingRelType
	}

	source, err := ex.resolveEndpoint(txn, env, srcPat)
	if err != nil {
		return err
	}
	target, err := ex.resolveEndpoint(txn, env, tgtPat)
	if err != nil {
		return err
	}

	e, err := ex.mgr.AddEdge(txn, relType, source, target, relProps)
	if err != nil {
		return err
	}
	if relPat.Value != "" {
		if err := appendEdge(env, relPat.Value, e); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Executor) resolveEndpoint(txn uint64, env map[string]*Binding, nodePat *ASTNode) (int64, error) {
	if nodePat.Value != "" {
		if b, ok := env[nodePat.Value]; ok && b.Kind == BindNodes && len(b.Nodes) == 1 {
			return b.Nodes[0].ID, nil
		}
	}
	labels, props, err := nodePatternParts(nodePat)
	if err != nil {
		return 0, err
	}
	n, err := ex.mgr.AddNode(txn, labels, props)
	if err != nil {
		return 0, err
	}
	if nodePat.Value != "" {
		if err := appendNode(env, nodePat.Value, n); err != nil {
			return 0, err
		}
	}
	return n.ID, nil
}

func (ex *Executor) execMatch(env map[string]*Binding, clause *ASTNode) error {
	for _, pattern := range clause.Children {
		switch len(pattern.Children) {
		case 1:
			if err := ex.matchNodes(env, pattern.Children[0]); err != nil {
				return err
			}
		case 3:
			if err := ex.matchRelationships(env, pattern); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: malformed pattern", ErrParse)
		}
	}
	return nil
}

// matchNodes binds a variable to all active nodes under the pattern's
// label. Inline properties in a MATCH pattern are not filtered on; WHERE
// is the filtering mechanism.
func (ex *Executor) matchNodes(env map[string]*Binding, nodePat *ASTNode) error {
	labels, _, err := nodePatternParts(nodePat)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return ErrMissingLabel
	}
	nodes, err := ex.mgr.NodesWithLabel(labels[0])
	if err != nil {
		return err
	}
	if nodePat.Value != "" {
		env[nodePat.Value] = &Binding{Kind: BindNodes, Nodes: nodes}
	}
	return nil
}

// matchRelationships scans all active edges for the pattern's type and
// binds the relationship variable. Named endpoint variables are bound to
// the per-edge source and target node lists, parallel to the edge list,
// with duplicates allowed.
func (ex *Executor) matchRelationships(env map[string]*Binding, pattern *ASTNode) error {
	srcPat, relPat, tgtPat := pattern.Children[0], pattern.Children[1], pattern.Children[2]

	relType, _, err := relPatternParts(relPat)
	if err != nil {
		return err
	}
	if relType == "" {
		return ErrMissingRelType
	}

	all, err := ex.mgr.AllEdges()
	if err != nil {
		return err
	}
	var edges []*storage.Edge
	var sources, targets []*storage.Node
	for _, e := range all {
		if e.Type != relType {
			continue
		}
		edges = append(edges, e)
		if srcPat.Value != "" {
			n, err := ex.mgr.GetNode(e.Source)
			if err != nil {
				return fmt.Errorf("edge %d source: %w", e.ID, err)
			}
			sources = append(sources, n)
		}
		if tgtPat.Value != "" {
			n, err := ex.mgr.GetNode(e.Target)
			if err != nil {
				return fmt.Errorf("edge %d target: %w", e.ID, err)
			}
			targets = append(targets, n)
		}
	}

	if relPat.Value != "" {
		env[relPat.Value] = &Binding{Kind: BindEdges, Edges: edges}
	}
	if srcPat.Value != "" {
		env[srcPat.Value] = &Binding{Kind: BindNodes, Nodes: sources}
	}
	if tgtPat.Value != "" {
		env[tgtPat.Value] = &Binding{Kind: BindNodes, Nodes: targets}
	}
	return nil
}

// execWhere filters a binding in place, keeping entities whose named
// property equals the literal. Equality is typed: a string "1" never
// matches the integer 1.
func (ex *Executor) execWhere(env map[string]*Binding, clause *ASTNode) error {
	variable, key, want, err := assignmentParts(clause.Children[0])
	if err != nil {
		return err
	}
	b, ok := env[variable]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnboundVariable, variable)
	}
	switch b.Kind {
	case BindNodes:
		kept := b.Nodes[:0]
		for _, n := range b.Nodes {
			if v, ok := n.Property(key); ok && v.Equal(want) {
				kept = append(kept, n)
			}
		}
		b.Nodes = kept
	case BindEdges:
		kept := b.Edges[:0]
		for _, e := range b.Edges {
			if v, ok := e.Property(key); ok && v.Equal(want) {
				kept = append(kept, e)
			}
		}
		b.Edges = kept
	}
	return nil
}

// execSet applies each `var.key = literal` as a single-property patch to
// every entity bound to var, refreshing the bound copies with the updated
// versions.
func (ex *Executor) execSet(txn uint64, env map[string]*Binding, clause *ASTNode) error {
	for _, assign := range clause.Children {
		variable, key, value, err := assignmentParts(assign)
		if err != nil {
			return err
		}
		b, ok := env[variable]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnboundVariable, variable)
		}
		patch := []storage.Property{{Key: key, Value: value}}
		switch b.Kind {
		case BindNodes:
			for i, n := range b.Nodes {
				updated, err := ex.mgr.UpdateNode(txn, n.ID, patch)
				if err != nil {
					return err
				}
				b.Nodes[i] = updated
			}
		case BindEdges:
			for i, e := range b.Edges {
				updated, err := ex.mgr.UpdateEdge(txn, e.ID, patch)
				if err != nil {
					return err
				}
				b.Edges[i] = updated
			}
		}
	}
	return nil
}

// execDelete deletes every entity bound to each listed variable and drops
// the binding. An unbound variable is an error; an empty binding is a
// no-op.
func (ex *Executor) execDelete(txn uint64, env map[string]*Binding, clause *ASTNode) error {
	for _, ident := range clause.Children {
		b, ok := env[ident.Value]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnboundVariable, ident.Value)
		}
		switch b.Kind {
		case BindNodes:
			for _, n := range b.Nodes {
				if err := ex.mgr.DeleteNode(txn, n.ID); err != nil {
					return err
				}
			}
		case BindEdges:
			for _, e := range b.Edges {
				if err := ex.mgr.DeleteEdge(txn, e.ID); err != nil {
					return err
				}
			}
		}
		delete(env, ident.Value)
	}
	return nil
}

// execReturn builds result rows for each listed variable, one row per
// bound entity, deduplicated by (kind, id) across the whole RETURN list.
// Row order follows the RETURN list, then each binding's list order.
func (ex *Executor) execReturn(env map[string]*Binding, clause *ASTNode) ([]Row, error) {
	rows := []Row{}
	type seenKey struct {
		kind BindingKind
		id   int64
	}
	seen := make(map[seenKey]bool)

	for _, ident := range clause.Children {
		b, ok := env[ident.Value]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundVariable, ident.Value)
		}
		switch b.Kind {
		case BindNodes:
			for _, n := range b.Nodes {
				k := seenKey{BindNodes, n.ID}
				if seen[k] {
					continue
				}
				seen[k] = true
				rows = append(rows, Row{ident.Value: nodeResult(n)})
			}
		case BindEdges:
			for _, e := range b.Edges {
				k := seenKey{BindEdges, e.ID}
				if seen[k] {
					continue
				}
				seen[k] = true
				rows = append(rows, Row{ident.Value: edgeResult(e)})
			}
		}
	}
	return rows, nil
}

func nodeResult(n *storage.Node) map[string]any {
	labels := n.Labels
	if labels == nil {
		labels = []string{}
	}
	return map[string]any{
		"id":         n.ID,
		"labels":     labels,
		"properties": storage.PropertiesToMap(n.Properties),
	}
}

func edgeResult(e *storage.Edge) map[string]any {
	return map[string]any{
		"id":         e.ID,
		"type":       e.Type,
		"source":     e.Source,
		"target":     e.Target,
		"properties": storage.PropertiesToMap(e.Properties),
	}
}

// nodePatternParts splits a node pattern's children into its labels and
// its literal properties.
func nodePatternParts(nodePat *ASTNode) ([]string, []storage.Property, error) {
	var labels []string
	var props []storage.Property
	for _, child := range nodePat.Children {
		switch child.Kind {
		case ASTLabel:
			labels = append(labels, child.Value)
		case ASTProperty:
			p, err := patternProperty(child)
			if err != nil {
				return nil, nil, err
			}
			props = append(props, p)
		default:
			return nil, nil, fmt.Errorf("%w: unexpected %s in node pattern", ErrParse, child.Kind)
		}
	}
	return labels, props, nil
}

// relPatternParts splits a relationship pattern's children into its type
// (empty when omitted) and its literal properties.
func relPatternParts(relPat *ASTNode) (string, []storage.Property, error) {
	var relType string
	var props []storage.Property
	for _, child := range relPat.Children {
		switch child.Kind {
		case ASTRelType:
			relType = child.Value
		case ASTProperty:
			p, err := patternProperty(child)
			if err != nil {
				return "", nil, err
			}
			props = append(props, p)
		default:
			return "", nil, fmt.Errorf("%w: unexpected %s in relationship pattern", ErrParse, child.Kind)
		}
	}
	return relType, props, nil
}

func patternProperty(prop *ASTNode) (storage.Property, error) {
	if len(prop.Children) != 2 {
		return storage.Property{}, fmt.Errorf("%w: malformed property", ErrParse)
	}
	value, err := literalValue(prop.Children[1])
	if err != nil {
		return storage.Property{}, err
	}
	return storage.Property{Key: prop.Children[0].Value, Value: value}, nil
}

func assignmentParts(assign *ASTNode) (variable, key string, value storage.Value, err error) {
	if assign.Kind != ASTProperty || len(assign.Children) != 3 {
		return "", "", storage.Value{}, fmt.Errorf("%w: malformed assignment", ErrParse)
	}
	value, err = literalValue(assign.Children[2])
	if err != nil {
		return "", "", storage.Value{}, err
	}
	return assign.Children[0].Value, assign.Children[1].Value, value, nil
}

// literalValue converts a literal AST node to a typed value using its
// recorded type tag.
func literalValue(lit *ASTNode) (storage.Value, error) {
	if lit.Kind != ASTLiteral {
		return storage.Value{}, fmt.Errorf("%w: expected a literal, got %s", ErrParse, lit.Kind)
	}
	switch lit.TypeTag() {
	case TagInt:
		i, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return storage.Value{}, fmt.Errorf("%w: %q is not an integer", ErrBadLiteral, lit.Value)
		}
		return storage.Int64Value(i), nil
	case TagString:
		return storage.StringValue(lit.Value), nil
	case TagBool:
		return storage.BoolValue(strings.EqualFold(lit.Value, "true")), nil
	default:
		return storage.Value{}, fmt.Errorf("%w: unknown type tag %q", ErrBadLiteral, lit.TypeTag())
	}
}

func appendNode(env map[string]*Binding, name string, n *storage.Node) error {
	b, ok := env[name]
	if !ok {
		env[name] = &Binding{Kind: BindNodes, Nodes: []*storage.Node{n}}
		return nil
	}
	if b.Kind != BindNodes {
		return fmt.Errorf("%w: %s holds edges", ErrBindingKind, name)
	}
	b.Nodes = append(b.Nodes, n)
	return nil
}

func appendEdge(env map[string]*Binding, name string, e *storage.Edge) error {
	b, ok := env[name]
	if !ok {
		env[name] = &Binding{Kind: BindEdges, Edges: []*storage.Edge{e}}
		return nil
	}
	if b.Kind != BindEdges {
		return fmt.Errorf("%w: %s holds nodes", ErrBindingKind, name)
	}
	b.Edges = append(b.Edges, e)
	return nil
}
