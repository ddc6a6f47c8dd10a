package storage

import "container/list"

// BufferPool is a strict-LRU page cache in front of a Pager.
//
// The pool is write-through: WritePage persists to disk first and only then
// updates the cached copy, so the cache can never be newer than the file.
// Both hits and stores move the page to the front of the recency list;
// when the pool is full the least recently used page is evicted. Evictions
// are silent since no page is ever dirty.
//
// GetPage returns a defensive copy of the cached bytes. Callers may hold
// the slice as long as they like without pinning the page.
//
// Example:
//
//	pool := storage.NewBufferPool(pager, 100)
//	data, err := pool.GetPage(3)   // miss: read from disk, cache, copy out
//	data, err = pool.GetPage(3)    // hit: copy out of cache
type BufferPool struct {
	pager    *Pager
	capacity int

	order   *list.List               // front = most recently used
	entries map[uint32]*list.Element // pageID -> element in order

	hits   uint64
	misses uint64
}

type poolEntry struct {
	pageID uint32
	data   []byte
}

// NewBufferPool creates a pool over pager holding at most capacity pages.
// A capacity below 1 is clamped to 1.
func NewBufferPool(pager *Pager, capacity int) *BufferPool {
	if capacity < 1 {
		capacity = 1
	}
	return &BufferPool{
		pager:    pager,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[uint32]*list.Element, capacity),
	}
}

// GetPage returns a copy of the page, reading it from disk on a miss.
func (bp *BufferPool) GetPage(pageID uint32) ([]byte, error) {
	if elem, ok := bp.entries[pageID]; ok {
		bp.hits++
		bp.order.MoveToFront(elem)
		return copyPage(elem.Value.(*poolEntry).data), nil
	}

	bp.misses++
	data, err := bp.pager.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	bp.store(pageID, data)
	return copyPage(data), nil
}

// WritePage writes the page through to disk and refreshes the cached copy.
func (bp *BufferPool) WritePage(pageID uint32, data []byte) error {
	if err := bp.pager.WritePage(pageID, data); err != nil {
		return err
	}
	if elem, ok := bp.entries[pageID]; ok {
		entry := elem.Value.(*poolEntry)
		entry.data = copyPage(data)
		bp.order.MoveToFront(elem)
		return nil
	}
	bp.store(pageID, copyPage(data))
	return nil
}

// AllocatePage extends the underlying file by one page. The fresh page is
// not cached until it is read or written.
func (bp *BufferPool) AllocatePage() (uint32, error) {
	return bp.pager.AllocatePage()
}

// PageSize returns the underlying pager's page size.
func (bp *BufferPool) PageSize() uint32 { return bp.pager.PageSize() }

// PageCount returns the underlying pager's page count.
func (bp *BufferPool) PageCount() uint32 { return bp.pager.PageCount() }

// Len returns the number of cached pages.
func (bp *BufferPool) Len() int { return bp.order.Len() }

// Stats returns cumulative hit and miss counts.
func (bp *BufferPool) Stats() (hits, misses uint64) { return bp.hits, bp.misses }

// Flush is a no-op under write-through caching; it exists so callers do not
// need to know the policy.
func (bp *BufferPool) Flush() error { return nil }

// store takes ownership of data.
func (bp *BufferPool) store(pageID uint32, data []byte) {
	if bp.order.Len() >= bp.capacity {
		bp.evict()
	}
	elem := bp.order.PushFront(&poolEntry{pageID: pageID, data: data})
	bp.entries[pageID] = elem
}

func (bp *BufferPool) evict() {
	elem := bp.order.Back()
	if elem == nil {
		return
	}
	bp.order.Remove(elem)
	delete(bp.entries, elem.Value.(*poolEntry).pageID)
}

func copyPage(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
