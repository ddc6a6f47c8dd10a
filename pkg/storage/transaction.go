package storage

import "fmt"

// TxManager hands out transaction IDs and tracks in-flight transactions
// until they commit into the WAL.
//
// Transactions here are operation groups, not isolation scopes: mutations
// are applied to storage as they happen, and there is no rollback. An
// error mid-transaction leaves the operations already applied in place.
//
// Example:
//
//	txm := storage.NewTxManager(storage.NewWAL())
//	txnID := txm.Begin()
//	// ... apply mutations, logging each one:
//	txm.RecordOperation(txnID, storage.Operation{Type: storage.OpCreateNode, EntityID: 1, PageID: 2})
//	err := txm.Commit(txnID)
type TxManager struct {
	wal    *WAL
	nextID uint64
	active map[uint64][]Operation
}

// NewTxManager creates a manager committing into wal. IDs start at 1.
func NewTxManager(wal *WAL) *TxManager {
	return &TxManager{
		wal:    wal,
		nextID: 1,
		active: make(map[uint64][]Operation),
	}
}

// Begin starts a new transaction and returns its ID.
func (tm *TxManager) Begin() uint64 {
	id := tm.nextID
	tm.nextID++
	tm.active[id] = []Operation{}
	return id
}

// RecordOperation appends an operation to an in-flight transaction.
func (tm *TxManager) RecordOperation(txnID uint64, op Operation) error {
	ops, ok := tm.active[txnID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTransaction, txnID)
	}
	tm.active[txnID] = append(ops, op)
	return nil
}

// Commit moves the transaction's operations into the WAL and forgets the
// transaction. Committing an unknown or already-committed ID fails.
func (tm *TxManager) Commit(txnID uint64) error {
	ops, ok := tm.active[txnID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTransaction, txnID)
	}
	delete(tm.active, txnID)
	tm.wal.Append(txnID, ops)
	return nil
}

// Active returns the number of in-flight transactions.
func (tm *TxManager) Active() int { return len(tm.active) }
