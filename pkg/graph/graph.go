// Package graph implements the graph manager: ID allocation, node and
// edge CRUD over the record store, label index maintenance, and the boot
// scan that rebuilds the in-memory indexes from the data file on open.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/aabr2612/KiteDB/pkg/index"
	"github.com/aabr2612/KiteDB/pkg/storage"
)

// Graph manager errors.
var (
	ErrNotActive     = errors.New("graph: entity is not active")
	ErrEmptyEdgeType = errors.New("graph: edge type must not be empty")
)

// Manager owns the live graph: it allocates IDs, applies mutations through
// the record store, keeps the indexes in sync, and logs every mutation
// into the transaction manager.
//
// IDs are assigned monotonically starting at 1, separately for nodes and
// edges, and are never reused; deleting an entity retires its ID. Deletes
// do not cascade: removing a node leaves edges referencing it in place
// (they simply fail to resolve their endpoint afterwards).
//
// Not safe for concurrent use.
type Manager struct {
	records *storage.RecordStore
	pool    *storage.BufferPool
	idx     *index.Index
	txm     *storage.TxManager

	nextNodeID int64
	nextEdgeID int64

	log *logrus.Entry
}

// NewManager creates a manager over the given pool and indexes. Counters
// start at 1; call Rebuild to resume them from an existing file.
func NewManager(pool *storage.BufferPool, idx *index.Index, txm *storage.TxManager) *Manager {
	return &Manager{
		records:    storage.NewRecordStore(pool),
		pool:       pool,
		idx:        idx,
		txm:        txm,
		nextNodeID: 1,
		nextEdgeID: 1,
		log:        logrus.WithField("component", "graph"),
	}
}

// Begin starts a transaction for a group of mutations.
func (m *Manager) Begin() uint64 { return m.txm.Begin() }

// Commit finishes a transaction.
func (m *Manager) Commit(txnID uint64) error { return m.txm.Commit(txnID) }

// AddNode creates a node with the given labels and properties and returns
// it with its assigned ID. Duplicate property keys are stored as given.
func (m *Manager) AddNode(txnID uint64, labels []string, props []storage.Property) (*storage.Node, error) {
	n := &storage.Node{
		ID:         m.nextNodeID,
		Labels:     labels,
		Properties: props,
		Active:     true,
	}
	pageID, err := m.records.WriteNode(n)
	if err != nil {
		return nil, err
	}
	if err := m.idx.InsertNode(n.ID, pageID); err != nil {
		return nil, err
	}
	for _, l := range n.Labels {
		m.idx.AddNodeLabel(l, n.ID)
	}
	m.nextNodeID++
	if err := m.txm.RecordOperation(txnID, storage.Operation{
		Type: storage.OpCreateNode, EntityID: n.ID, PageID: pageID,
	}); err != nil {
		return nil, err
	}
	return n, nil
}

// AddEdge creates a directed edge between two existing nodes. The type
// must be non-empty; self-loops are allowed.
func (m *Manager) AddEdge(txnID uint64, edgeType string, source, target int64, props []storage.Property) (*storage.Edge, error) {
	if edgeType == "" {
		return nil, ErrEmptyEdgeType
	}
	if !m.idx.HasNode(source) {
		return nil, fmt.Errorf("edge source: %w: node %d", index.ErrNotFound, source)
	}
	if !m.idx.HasNode(target) {
		return nil, fmt.Errorf("edge target: %w: node %d", index.ErrNotFound, target)
	}
	e := &storage.Edge{
		ID:         m.nextEdgeID,
		Type:       edgeType,
		Source:     source,
		Target:     target,
		Properties: props,
		Active:     true,
	}
	pageID, err := m.records.WriteEdge(e)
	if err != nil {
		return nil, err
	}
	if err := m.idx.InsertEdge(e.ID, pageID); err != nil {
		return nil, err
	}
	m.nextEdgeID++
	if err := m.txm.RecordOperation(txnID, storage.Operation{
		Type: storage.OpCreateEdge, EntityID: e.ID, PageID: pageID,
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// GetNode returns the live version of a node. Unindexed IDs fail with
// index.ErrNotFound; an indexed but inactive record (which indicates index
// corruption) fails with ErrNotActive.
func (m *Manager) GetNode(nodeID int64) (*storage.Node, error) {
	pageID, err := m.idx.NodePage(nodeID)
	if err != nil {
		return nil, err
	}
	n, err := m.records.ReadNode(pageID)
	if err != nil {
		return nil, err
	}
	if !n.Active {
		return nil, fmt.Errorf("%w: node %d", ErrNotActive, nodeID)
	}
	return n, nil
}

// GetEdge returns the live version of an edge.
func (m *Manager) GetEdge(edgeID int64) (*storage.Edge, error) {
	pageID, err := m.idx.EdgePage(edgeID)
	if err != nil {
		return nil, err
	}
	e, err := m.records.ReadEdge(pageID)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, fmt.Errorf("%w: edge %d", ErrNotActive, edgeID)
	}
	return e, nil
}

// UpdateNode merges the patch into the node's properties (existing keys
// overwritten in place, new keys appended) and writes the new version to a
// fresh page. Labels are immutable after creation.
func (m *Manager) UpdateNode(txnID uint64, nodeID int64, patch []storage.Property) (*storage.Node, error) {
	n, err := m.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	n.Properties = storage.MergeProperties(n.Properties, patch)
	pageID, err := m.records.WriteNode(n)
	if err != nil {
		return nil, err
	}
	if err := m.idx.UpdateNode(nodeID, pageID); err != nil {
		return nil, err
	}
	if err := m.txm.RecordOperation(txnID, storage.Operation{
		Type: storage.OpUpdateNode, EntityID: nodeID, PageID: pageID,
	}); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateEdge merges the patch into the edge's properties and writes the
// new version to a fresh page.
func (m *Manager) UpdateEdge(txnID uint64, edgeID int64, patch []storage.Property) (*storage.Edge, error) {
	e, err := m.GetEdge(edgeID)
	if err != nil {
		return nil, err
	}
	e.Properties = storage.MergeProperties(e.Properties, patch)
	pageID, err := m.records.WriteEdge(e)
	if err != nil {
		return nil, err
	}
	if err := m.idx.UpdateEdge(edgeID, pageID); err != nil {
		return nil, err
	}
	if err := m.txm.RecordOperation(txnID, storage.Operation{
		Type: storage.OpUpdateEdge, EntityID: edgeID, PageID: pageID,
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteNode writes an inactive tombstone version of the node and drops it
// from the primary and label indexes. Edges touching the node are left
// alone.
func (m *Manager) DeleteNode(txnID uint64, nodeID int64) error {
	n, err := m.GetNode(nodeID)
	if err != nil {
		return err
	}
	n.Active = false
	pageID, err := m.records.WriteNode(n)
	if err != nil {
		return err
	}
	if err := m.idx.DeleteNode(nodeID); err != nil {
		return err
	}
	for _, l := range n.Labels {
		m.idx.RemoveNodeLabel(l, nodeID)
	}
	return m.txm.RecordOperation(txnID, storage.Operation{
		Type: storage.OpDeleteNode, EntityID: nodeID, PageID: pageID,
	})
}

// DeleteEdge writes an inactive tombstone version of the edge and drops it
// from the edge index.
func (m *Manager) DeleteEdge(txnID uint64, edgeID int64) error {
	e, err := m.GetEdge(edgeID)
	if err != nil {
		return err
	}
	e.Active = false
	pageID, err := m.records.WriteEdge(e)
	if err != nil {
		return err
	}
	if err := m.idx.DeleteEdge(edgeID); err != nil {
		return err
	}
	return m.txm.RecordOperation(txnID, storage.Operation{
		Type: storage.OpDeleteEdge, EntityID: edgeID, PageID: pageID,
	})
}

// NodesWithLabel returns the live nodes carrying the label, in label-index
// order (insertion order).
func (m *Manager) NodesWithLabel(label string) ([]*storage.Node, error) {
	ids := m.idx.NodesWithLabel(label)
	nodes := make([]*storage.Node, 0, len(ids))
	for _, id := range ids {
		n, err := m.GetNode(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// AllNodes returns every live node in ascending ID order.
func (m *Manager) AllNodes() ([]*storage.Node, error) {
	ids := m.idx.NodeIDs()
	nodes := make([]*storage.Node, 0, len(ids))
	for _, id := range ids {
		n, err := m.GetNode(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// AllEdges returns every live edge in ascending ID order.
func (m *Manager) AllEdges() ([]*storage.Edge, error) {
	ids := m.idx.EdgeIDs()
	edges := make([]*storage.Edge, 0, len(ids))
	for _, id := range ids {
		e, err := m.GetEdge(id)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// Labels returns all labels with at least one live node, sorted.
func (m *Manager) Labels() []string { return m.idx.Labels() }

// NodeCount returns the number of live nodes.
func (m *Manager) NodeCount() int { return m.idx.NodeCount() }

// EdgeCount returns the number of live edges.
func (m *Manager) EdgeCount() int { return m.idx.EdgeCount() }

// Rebuild reconstructs the indexes and ID counters from the data file.
//
// Every record page is decoded in allocation order. Because updates append
// new versions, a later page for the same ID supersedes an earlier one;
// the scan keeps only the last version seen. Inactive final versions are
// treated as deleted and stay out of the indexes, but still advance the ID
// counters so retired IDs are never reissued. All-zero pages (allocated
// but never written) are skipped.
func (m *Manager) Rebuild() error {
	type nodeVersion struct {
		node   *storage.Node
		pageID uint32
	}
	type edgeVersion struct {
		edge   *storage.Edge
		pageID uint32
	}
	nodes := make(map[int64]nodeVersion)
	edges := make(map[int64]edgeVersion)

	pageCount := m.pool.PageCount()
	for pageID := uint32(1); pageID < pageCount; pageID++ {
		data, err := m.pool.GetPage(pageID)
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		n, e, err := storage.DecodeRecord(data)
		if err != nil {
			return fmt.Errorf("rebuild page %d: %w", pageID, err)
		}
		switch {
		case n != nil:
			nodes[n.ID] = nodeVersion{node: n, pageID: pageID}
		case e != nil:
			edges[e.ID] = edgeVersion{edge: e, pageID: pageID}
		}
	}

	// insert in ascending ID order so label lists keep creation order
	nodeIDs := make([]int64, 0, len(nodes))
	for id := range nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	for _, id := range nodeIDs {
		v := nodes[id]
		if id >= m.nextNodeID {
			m.nextNodeID = id + 1
		}
		if !v.node.Active {
			continue
		}
		if err := m.idx.InsertNode(id, v.pageID); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		for _, l := range v.node.Labels {
			m.idx.AddNodeLabel(l, id)
		}
	}
	for id, v := range edges {
		if id >= m.nextEdgeID {
			m.nextEdgeID = id + 1
		}
		if !v.edge.Active {
			continue
		}
		if err := m.idx.InsertEdge(id, v.pageID); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
	}

	m.log.WithFields(logrus.Fields{
		"pages": pageCount - 1,
		"nodes": m.idx.NodeCount(),
		"edges": m.idx.EdgeCount(),
	}).Info("rebuilt indexes from data file")
	return nil
}
