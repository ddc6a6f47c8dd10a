package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManagerLifecycle(t *testing.T) {
	wal := NewWAL()
	txm := NewTxManager(wal)

	id1 := txm.Begin()
	id2 := txm.Begin()
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, 2, txm.Active())

	require.NoError(t, txm.RecordOperation(id1, Operation{Type: OpCreateNode, EntityID: 1, PageID: 1}))
	require.NoError(t, txm.RecordOperation(id1, Operation{Type: OpCreateEdge, EntityID: 1, PageID: 2}))
	require.NoError(t, txm.RecordOperation(id2, Operation{Type: OpDeleteNode, EntityID: 9, PageID: 3}))

	require.NoError(t, txm.Commit(id2))
	require.NoError(t, txm.Commit(id1))
	assert.Equal(t, 0, txm.Active())

	entries := wal.Entries()
	require.Len(t, entries, 2)
	// commit order, not begin order
	assert.Equal(t, uint64(2), entries[0].TxnID)
	assert.Equal(t, uint64(1), entries[1].TxnID)
	require.Len(t, entries[1].Operations, 2)
	assert.Equal(t, OpCreateNode, entries[1].Operations[0].Type)
	assert.Equal(t, OpCreateEdge, entries[1].Operations[1].Type)
}

func TestTxManagerUnknownTransaction(t *testing.T) {
	txm := NewTxManager(NewWAL())

	err := txm.RecordOperation(42, Operation{Type: OpCreateNode})
	assert.ErrorIs(t, err, ErrUnknownTransaction)
	assert.ErrorIs(t, txm.Commit(42), ErrUnknownTransaction)

	t.Run("double commit", func(t *testing.T) {
		id := txm.Begin()
		require.NoError(t, txm.Commit(id))
		assert.ErrorIs(t, txm.Commit(id), ErrUnknownTransaction)
	})
}

func TestTxManagerEmptyCommit(t *testing.T) {
	wal := NewWAL()
	txm := NewTxManager(wal)

	id := txm.Begin()
	require.NoError(t, txm.Commit(id))
	require.Equal(t, 1, wal.Len())
	assert.Empty(t, wal.Entries()[0].Operations)
}
