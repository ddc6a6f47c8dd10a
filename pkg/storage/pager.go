package storage

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// File header layout, stored in page 0:
//
//	offset 0: magic "GDB\x00" (4 bytes)
//	offset 4: page size, uint32 little-endian
//	offset 8: page count, uint32 little-endian (includes the header page)
//	rest:     zero padding to the page size
const (
	headerMagicLen    = 4
	headerPageSizeOff = 4
	headerPageCntOff  = 8
	headerLen         = 12
)

var headerMagic = [headerMagicLen]byte{'G', 'D', 'B', 0}

// MinPageSize is the smallest page size the header fits in with room for
// records. Anything from the header length up works mechanically, but pages
// below 64 bytes cannot hold a useful record.
const MinPageSize = 64

// Pager manages a single database file as an array of fixed-size pages.
// Page 0 is reserved for the file header; records live in pages 1 and up.
//
// A Pager performs no caching; wrap it in a BufferPool for that. It is not
// safe for concurrent use.
type Pager struct {
	file      *os.File
	path      string
	pageSize  uint32
	pageCount uint32
	log       *logrus.Entry
}

// OpenPager opens (or creates) the database file at path.
//
// For a new or empty file the header page is written immediately, so a
// freshly opened database always has pageCount == 1. For an existing file
// the header is validated: magic, stored page size against the requested
// one, and file length alignment. Mismatches return ErrBadHeader or
// ErrMisalignedFile rather than guessing.
func OpenPager(path string, pageSize uint32) (*Pager, error) {
	if pageSize < MinPageSize {
		return nil, fmt.Errorf("%w: %d (minimum %d)", ErrInvalidPageSize, pageSize, MinPageSize)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	p := &Pager{
		file:     file,
		path:     path,
		pageSize: pageSize,
		log:      logrus.WithField("component", "pager"),
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
		p.log.WithFields(logrus.Fields{
			"path":      path,
			"page_size": pageSize,
		}).Info("initialized database file")
		return p, nil
	}

	if err := p.readHeader(info.Size()); err != nil {
		file.Close()
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"path":       path,
		"page_size":  p.pageSize,
		"page_count": p.pageCount,
	}).Info("opened database file")
	return p, nil
}

func (p *Pager) writeHeader() error {
	if p.pageCount == 0 {
		p.pageCount = 1
	}
	buf := make([]byte, p.pageSize)
	copy(buf, headerMagic[:])
	binary.LittleEndian.PutUint32(buf[headerPageSizeOff:], p.pageSize)
	binary.LittleEndian.PutUint32(buf[headerPageCntOff:], p.pageCount)
	if _, err := p.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (p *Pager) readHeader(fileSize int64) error {
	buf := make([]byte, headerLen)
	if _, err := p.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if [headerMagicLen]byte(buf[:headerMagicLen]) != headerMagic {
		return fmt.Errorf("%w: bad magic %q", ErrBadHeader, buf[:headerMagicLen])
	}
	storedSize := binary.LittleEndian.Uint32(buf[headerPageSizeOff:])
	if storedSize != p.pageSize {
		return fmt.Errorf("%w: file page size %d, requested %d", ErrBadHeader, storedSize, p.pageSize)
	}
	p.pageCount = binary.LittleEndian.Uint32(buf[headerPageCntOff:])
	if p.pageCount == 0 {
		return fmt.Errorf("%w: zero page count", ErrBadHeader)
	}
	if fileSize%int64(p.pageSize) != 0 {
		return fmt.Errorf("%w: %d bytes with %d-byte pages", ErrMisalignedFile, fileSize, p.pageSize)
	}
	if got := fileSize / int64(p.pageSize); got < int64(p.pageCount) {
		return fmt.Errorf("%w: header claims %d pages, file holds %d", ErrBadHeader, p.pageCount, got)
	}
	return nil
}

// PageSize returns the fixed page size in bytes.
func (p *Pager) PageSize() uint32 { return p.pageSize }

// PageCount returns the number of allocated pages, including page 0.
func (p *Pager) PageCount() uint32 { return p.pageCount }

// ReadPage returns the full contents of the given page. The returned slice
// is freshly allocated and owned by the caller.
func (p *Pager) ReadPage(pageID uint32) ([]byte, error) {
	if pageID >= p.pageCount {
		return nil, fmt.Errorf("%w: %d (page count %d)", ErrInvalidPageID, pageID, p.pageCount)
	}
	buf := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(buf, int64(pageID)*int64(p.pageSize)); err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageID, err)
	}
	return buf, nil
}

// WritePage overwrites the given page. data must be exactly one page long
// and the page must already be allocated.
func (p *Pager) WritePage(pageID uint32, data []byte) error {
	if pageID >= p.pageCount {
		return fmt.Errorf("%w: %d (page count %d)", ErrInvalidPageID, pageID, p.pageCount)
	}
	if uint32(len(data)) != p.pageSize {
		return fmt.Errorf("%w: got %d, want %d", ErrPageLengthMismatch, len(data), p.pageSize)
	}
	if _, err := p.file.WriteAt(data, int64(pageID)*int64(p.pageSize)); err != nil {
		return fmt.Errorf("write page %d: %w", pageID, err)
	}
	return nil
}

// AllocatePage extends the file by one zeroed page and returns its ID.
// The header's page count is persisted before the new ID is handed out.
func (p *Pager) AllocatePage() (uint32, error) {
	pageID := p.pageCount
	zero := make([]byte, p.pageSize)
	if _, err := p.file.WriteAt(zero, int64(pageID)*int64(p.pageSize)); err != nil {
		return 0, fmt.Errorf("allocate page %d: %w", pageID, err)
	}
	p.pageCount++
	if err := p.writeHeader(); err != nil {
		p.pageCount--
		return 0, err
	}
	return pageID, nil
}

// Close flushes the header, syncs the file to disk and closes it. The
// pager must not be used afterwards.
func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}
	if err := p.writeHeader(); err != nil {
		p.file.Close()
		p.file = nil
		return err
	}
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		p.file = nil
		return fmt.Errorf("sync %s: %w", p.path, err)
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", p.path, err)
	}
	return nil
}
