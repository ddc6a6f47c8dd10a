package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// RecordStore persists node and edge records through a BufferPool, one
// record per page.
//
// Writes are append-only: every write, including an update of an existing
// entity, allocates a fresh page and leaves the old page behind. The
// current page for each entity is tracked by the indexes (pkg/index), and
// superseded pages are reclaimed only by a full rewrite of the file.
type RecordStore struct {
	pool *BufferPool
	log  *logrus.Entry
}

// NewRecordStore creates a record store over the given pool.
func NewRecordStore(pool *BufferPool) *RecordStore {
	return &RecordStore{
		pool: pool,
		log:  logrus.WithField("component", "records"),
	}
}

// WriteNode serializes the node into a newly allocated page and returns
// the page ID. Records longer than the page size are rejected with
// ErrRecordTooLarge; a record exactly one page long fits (zero padding is
// then empty).
func (rs *RecordStore) WriteNode(n *Node) (uint32, error) {
	data, err := EncodeNode(n)
	if err != nil {
		return 0, fmt.Errorf("encode node %d: %w", n.ID, err)
	}
	pageID, err := rs.writeRecord(data)
	if err != nil {
		return 0, fmt.Errorf("write node %d: %w", n.ID, err)
	}
	return pageID, nil
}

// WriteEdge serializes the edge into a newly allocated page and returns
// the page ID.
func (rs *RecordStore) WriteEdge(e *Edge) (uint32, error) {
	data, err := EncodeEdge(e)
	if err != nil {
		return 0, fmt.Errorf("encode edge %d: %w", e.ID, err)
	}
	pageID, err := rs.writeRecord(data)
	if err != nil {
		return 0, fmt.Errorf("write edge %d: %w", e.ID, err)
	}
	return pageID, nil
}

// ReadNode decodes the node record stored in the given page.
func (rs *RecordStore) ReadNode(pageID uint32) (*Node, error) {
	data, err := rs.pool.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	n, err := DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageID, err)
	}
	return n, nil
}

// ReadEdge decodes the edge record stored in the given page.
func (rs *RecordStore) ReadEdge(pageID uint32) (*Edge, error) {
	data, err := rs.pool.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	e, err := DecodeEdge(data)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageID, err)
	}
	return e, nil
}

func (rs *RecordStore) writeRecord(data []byte) (uint32, error) {
	pageSize := rs.pool.PageSize()
	if uint32(len(data)) > pageSize {
		return 0, fmt.Errorf("%w: %d bytes, page size %d", ErrRecordTooLarge, len(data), pageSize)
	}
	pageID, err := rs.pool.AllocatePage()
	if err != nil {
		return 0, err
	}
	page := make([]byte, pageSize)
	copy(page, data)
	if err := rs.pool.WritePage(pageID, page); err != nil {
		return 0, err
	}
	return pageID, nil
}
