// Package storage implements the on-disk layer of the KiteDB graph engine:
// a single paged file, an LRU buffer pool over it, the versioned binary
// record codec, the append-only record store, and the minimal transaction
// log.
//
// The storage layer is deliberately single-threaded. None of the types in
// this package carry locks; an embedder that shares a database between
// goroutines must serialize access externally (see pkg/server for an
// example).
//
// Design principles:
//   - One record per page, zero-padded to the page size
//   - Write-through caching (no dirty tracking)
//   - Append-only record writes (updates allocate a fresh page)
//   - Typed property values (no untyped carriers across the wire)
//
// Example usage:
//
//	pager, err := storage.OpenPager("graph.db", 4096)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pager.Close()
//
//	pool := storage.NewBufferPool(pager, 100)
//	records := storage.NewRecordStore(pool)
//
//	node := &storage.Node{
//		Labels: []string{"Person"},
//		Properties: []storage.Property{
//			{Key: "name", Value: storage.StringValue("Alice")},
//		},
//		Active: true,
//	}
//	pageID, err := records.WriteNode(node)
package storage

import "errors"

// Common storage errors.
var (
	ErrInvalidPageID      = errors.New("storage: invalid page id")
	ErrInvalidPageSize    = errors.New("storage: invalid page size")
	ErrPageLengthMismatch = errors.New("storage: page data length does not match page size")
	ErrMisalignedFile     = errors.New("storage: file size is not a multiple of the page size")
	ErrBadHeader          = errors.New("storage: bad file header")
	ErrRecordTooLarge     = errors.New("storage: record exceeds page size")
	ErrMalformedRecord    = errors.New("storage: malformed record")
	ErrUnsupportedVersion = errors.New("storage: unsupported record version")
	ErrUnsupportedKind    = errors.New("storage: unsupported value kind")
)

// ValueKind tags the type of a property value.
//
// The numeric values are part of the on-disk format (see codec.go) and must
// not be reordered.
type ValueKind uint8

const (
	KindInt64 ValueKind = iota
	KindString
	KindBool
)

// String returns the tag name used in query literals ("int", "string",
// "bool").
func (k ValueKind) String() string {
	switch k {
	case KindInt64:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged property value. Exactly one of the payload fields is
// meaningful, selected by Kind. Using a tagged struct instead of `any`
// keeps equality checks and serialization free of reflection and runtime
// type assertions.
//
// Example:
//
//	age := storage.Int64Value(30)
//	name := storage.StringValue("Alice")
//	ok := storage.BoolValue(true)
type Value struct {
	Kind ValueKind
	Int  int64
	Str  string
	Bool bool
}

// Int64Value wraps an int64 as a Value.
func Int64Value(v int64) Value { return Value{Kind: KindInt64, Int: v} }

// StringValue wraps a string as a Value.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BoolValue wraps a bool as a Value.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Equal reports whether two values have the same kind and payload.
// Comparison is tag-first: values of different kinds are never equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt64:
		return v.Int == o.Int
	case KindString:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	default:
		return false
	}
}

// Any returns the payload as a plain Go value, for JSON results.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt64:
		return v.Int
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// Property is a typed key-value pair attached to a node or an edge.
type Property struct {
	Key   string
	Value Value
}

// Node represents a graph node (vertex) in the labeled property graph.
//
// IDs are positive int64s assigned monotonically by the graph manager.
// Labels and properties keep their insertion order; the format does not
// enforce key uniqueness, but updates merge by key (last write wins).
// The Active flag makes the node visible to MATCH; deletion clears it and
// drops the node from the indexes.
type Node struct {
	ID         int64
	Labels     []string
	Properties []Property
	Active     bool
}

// Edge represents a directed, typed relationship between two nodes.
//
// Source and Target refer to assigned node IDs; they need not still be
// active (edge visibility is independent of its endpoints). Self-loops
// are allowed and no uniqueness is enforced on (Source, Type, Target).
type Edge struct {
	ID         int64
	Type       string
	Source     int64
	Target     int64
	Properties []Property
	Active     bool
}

// Property returns the value of the named property, if present. When a key
// appears more than once the first occurrence wins, matching lookup order.
func (n *Node) Property(key string) (Value, bool) {
	return lookupProperty(n.Properties, key)
}

// Property returns the value of the named property, if present.
func (e *Edge) Property(key string) (Value, bool) {
	return lookupProperty(e.Properties, key)
}

func lookupProperty(props []Property, key string) (Value, bool) {
	for _, p := range props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// MergeProperties merges a patch into an existing property list by key.
// Keys already present are overwritten in place (preserving their position);
// new keys are appended in patch order. Duplicate keys in the existing list
// collapse to their first occurrence.
func MergeProperties(existing, patch []Property) []Property {
	merged := make([]Property, 0, len(existing)+len(patch))
	pos := make(map[string]int, len(existing))
	for _, p := range existing {
		if _, seen := pos[p.Key]; seen {
			continue
		}
		pos[p.Key] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range patch {
		if i, seen := pos[p.Key]; seen {
			merged[i] = p
			continue
		}
		pos[p.Key] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

// PropertiesToMap flattens a property list to plain Go values, for JSON
// results. Later duplicates overwrite earlier ones.
func PropertiesToMap(props []Property) map[string]any {
	m := make(map[string]any, len(props))
	for _, p := range props {
		m[p.Key] = p.Value.Any()
	}
	return m
}

// Equal reports deep equality of two nodes (ID, labels, properties in
// order, and the active flag).
func (n *Node) Equal(o *Node) bool {
	if n.ID != o.ID || n.Active != o.Active || len(n.Labels) != len(o.Labels) {
		return false
	}
	for i, l := range n.Labels {
		if o.Labels[i] != l {
			return false
		}
	}
	return propertiesEqual(n.Properties, o.Properties)
}

// Equal reports deep equality of two edges.
func (e *Edge) Equal(o *Edge) bool {
	if e.ID != o.ID || e.Type != o.Type || e.Source != o.Source ||
		e.Target != o.Target || e.Active != o.Active {
		return false
	}
	return propertiesEqual(e.Properties, o.Properties)
}

func propertiesEqual(a, b []Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i, p := range a {
		if b[i].Key != p.Key || !b[i].Value.Equal(p.Value) {
			return false
		}
	}
	return true
}
