// Package index provides the in-memory lookup structures that map entity
// IDs to their current storage pages, plus a label index for node scans.
//
// Because record storage is append-only, these maps are the single source
// of truth for which page holds the live version of an entity. They are
// rebuilt from the data file on open (pkg/graph) and maintained eagerly on
// every mutation. None of the structures are persisted.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// Index errors.
var (
	ErrDuplicateID = errors.New("index: duplicate id")
	ErrNotFound    = errors.New("index: id not found")
)

// Index holds the node, edge and label maps for one database.
//
// Insert/Update/Delete are exact-existence operations: inserting an ID
// that is present fails with ErrDuplicateID, and updating or deleting one
// that is absent fails with ErrNotFound. The graph manager relies on these
// being strict to catch bookkeeping bugs early instead of papering over
// them with upserts.
//
// Not safe for concurrent use.
type Index struct {
	nodes  map[int64]uint32   // nodeID -> current pageID
	edges  map[int64]uint32   // edgeID -> current pageID
	labels map[string][]int64 // label -> nodeIDs in insertion order
}

// New creates an empty index set.
func New() *Index {
	return &Index{
		nodes:  make(map[int64]uint32),
		edges:  make(map[int64]uint32),
		labels: make(map[string][]int64),
	}
}

// InsertNode registers a new node's page.
func (ix *Index) InsertNode(nodeID int64, pageID uint32) error {
	if _, ok := ix.nodes[nodeID]; ok {
		return fmt.Errorf("%w: node %d", ErrDuplicateID, nodeID)
	}
	ix.nodes[nodeID] = pageID
	return nil
}

// UpdateNode repoints an existing node to a new page.
func (ix *Index) UpdateNode(nodeID int64, pageID uint32) error {
	if _, ok := ix.nodes[nodeID]; !ok {
		return fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	ix.nodes[nodeID] = pageID
	return nil
}

// DeleteNode removes a node from the primary index. Label entries are
// managed separately via RemoveNodeLabel.
func (ix *Index) DeleteNode(nodeID int64) error {
	if _, ok := ix.nodes[nodeID]; !ok {
		return fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	delete(ix.nodes, nodeID)
	return nil
}

// NodePage returns the current page of a node.
func (ix *Index) NodePage(nodeID int64) (uint32, error) {
	pageID, ok := ix.nodes[nodeID]
	if !ok {
		return 0, fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	return pageID, nil
}

// HasNode reports whether the node is indexed.
func (ix *Index) HasNode(nodeID int64) bool {
	_, ok := ix.nodes[nodeID]
	return ok
}

// InsertEdge registers a new edge's page.
func (ix *Index) InsertEdge(edgeID int64, pageID uint32) error {
	if _, ok := ix.edges[edgeID]; ok {
		return fmt.Errorf("%w: edge %d", ErrDuplicateID, edgeID)
	}
	ix.edges[edgeID] = pageID
	return nil
}

// UpdateEdge repoints an existing edge to a new page.
func (ix *Index) UpdateEdge(edgeID int64, pageID uint32) error {
	if _, ok := ix.edges[edgeID]; !ok {
		return fmt.Errorf("%w: edge %d", ErrNotFound, edgeID)
	}
	ix.edges[edgeID] = pageID
	return nil
}

// DeleteEdge removes an edge from the primary index.
func (ix *Index) DeleteEdge(edgeID int64) error {
	if _, ok := ix.edges[edgeID]; !ok {
		return fmt.Errorf("%w: edge %d", ErrNotFound, edgeID)
	}
	delete(ix.edges, edgeID)
	return nil
}

// EdgePage returns the current page of an edge.
func (ix *Index) EdgePage(edgeID int64) (uint32, error) {
	pageID, ok := ix.edges[edgeID]
	if !ok {
		return 0, fmt.Errorf("%w: edge %d", ErrNotFound, edgeID)
	}
	return pageID, nil
}

// HasEdge reports whether the edge is indexed.
func (ix *Index) HasEdge(edgeID int64) bool {
	_, ok := ix.edges[edgeID]
	return ok
}

// AddNodeLabel records the node under a label. Adding the same pair twice
// is a no-op, so callers can re-add safely during rebuilds.
func (ix *Index) AddNodeLabel(label string, nodeID int64) {
	for _, id := range ix.labels[label] {
		if id == nodeID {
			return
		}
	}
	ix.labels[label] = append(ix.labels[label], nodeID)
}

// RemoveNodeLabel drops the node from a label's list. Empty lists are
// removed so Labels never reports a label with no members.
func (ix *Index) RemoveNodeLabel(label string, nodeID int64) {
	ids := ix.labels[label]
	for i, id := range ids {
		if id == nodeID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(ix.labels, label)
		return
	}
	ix.labels[label] = ids
}

// NodesWithLabel returns the node IDs carrying the label, in the order
// they were added. The result is a copy.
func (ix *Index) NodesWithLabel(label string) []int64 {
	ids := ix.labels[label]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// Labels returns all labels with at least one member, sorted.
func (ix *Index) Labels() []string {
	out := make([]string, 0, len(ix.labels))
	for l := range ix.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// NodeIDs returns all indexed node IDs in ascending order.
func (ix *Index) NodeIDs() []int64 {
	return sortedKeys(ix.nodes)
}

// EdgeIDs returns all indexed edge IDs in ascending order. The executor's
// relationship scan depends on this ordering being deterministic.
func (ix *Index) EdgeIDs() []int64 {
	return sortedKeys(ix.edges)
}

// NodeCount returns the number of indexed nodes.
func (ix *Index) NodeCount() int { return len(ix.nodes) }

// EdgeCount returns the number of indexed edges.
func (ix *Index) EdgeCount() int { return len(ix.edges) }

func sortedKeys(m map[int64]uint32) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
