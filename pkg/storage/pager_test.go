package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func TestOpenPagerNewFile(t *testing.T) {
	path := tempDBPath(t)
	p, err := OpenPager(path, 4096)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, uint32(4096), p.PageSize())
	assert.Equal(t, uint32(1), p.PageCount(), "header page allocated on init")

	header, err := p.ReadPage(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{'G', 'D', 'B', 0}, header[:4])
	assert.Equal(t, uint32(4096), binary.LittleEndian.Uint32(header[4:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(header[8:]))
	for _, b := range header[12:] {
		if b != 0 {
			t.Fatal("header page not zero padded")
		}
	}
}

func TestOpenPagerValidation(t *testing.T) {
	t.Run("page size too small", func(t *testing.T) {
		_, err := OpenPager(tempDBPath(t), 16)
		require.ErrorIs(t, err, ErrInvalidPageSize)
	})

	t.Run("bad magic", func(t *testing.T) {
		path := tempDBPath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))
		_, err := OpenPager(path, 4096)
		require.ErrorIs(t, err, ErrBadHeader)
	})

	t.Run("page size mismatch", func(t *testing.T) {
		path := tempDBPath(t)
		p, err := OpenPager(path, 4096)
		require.NoError(t, err)
		require.NoError(t, p.Close())

		_, err = OpenPager(path, 8192)
		require.ErrorIs(t, err, ErrBadHeader)
	})

	t.Run("misaligned file", func(t *testing.T) {
		path := tempDBPath(t)
		p, err := OpenPager(path, 4096)
		require.NoError(t, err)
		require.NoError(t, p.Close())

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.Write([]byte{0xFF})
		require.NoError(t, err)
		require.NoError(t, f.Close())

		_, err = OpenPager(path, 4096)
		require.ErrorIs(t, err, ErrMisalignedFile)
	})
}

func TestPagerReadWriteAllocate(t *testing.T) {
	p, err := OpenPager(tempDBPath(t), 256)
	require.NoError(t, err)
	defer p.Close()

	pageID, err := p.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pageID)
	assert.Equal(t, uint32(2), p.PageCount())

	fresh, err := p.ReadPage(pageID)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 256), fresh, "allocated page starts zeroed")

	data := make([]byte, 256)
	copy(data, "hello")
	require.NoError(t, p.WritePage(pageID, data))

	got, err := p.ReadPage(pageID)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	t.Run("out of range page id", func(t *testing.T) {
		_, err := p.ReadPage(99)
		assert.ErrorIs(t, err, ErrInvalidPageID)
		assert.ErrorIs(t, p.WritePage(99, data), ErrInvalidPageID)
	})

	t.Run("wrong data length", func(t *testing.T) {
		assert.ErrorIs(t, p.WritePage(pageID, []byte("short")), ErrPageLengthMismatch)
	})
}

func TestPagerPersistenceAcrossReopen(t *testing.T) {
	path := tempDBPath(t)

	p, err := OpenPager(path, 256)
	require.NoError(t, err)
	id1, err := p.AllocatePage()
	require.NoError(t, err)
	id2, err := p.AllocatePage()
	require.NoError(t, err)

	data := make([]byte, 256)
	copy(data, "persisted")
	require.NoError(t, p.WritePage(id2, data))
	require.NoError(t, p.Close())

	p2, err := OpenPager(path, 256)
	require.NoError(t, err)
	defer p2.Close()

	assert.Equal(t, uint32(3), p2.PageCount())
	got, err := p2.ReadPage(id2)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	blank, err := p2.ReadPage(id1)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 256), blank)
}
