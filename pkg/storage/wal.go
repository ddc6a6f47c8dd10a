package storage

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrUnknownTransaction is returned for operations on a transaction ID
// that was never begun or has already committed.
var ErrUnknownTransaction = errors.New("storage: unknown transaction")

// OperationType names a logged mutation.
type OperationType string

const (
	OpCreateNode OperationType = "CREATE_NODE"
	OpCreateEdge OperationType = "CREATE_EDGE"
	OpUpdateNode OperationType = "UPDATE_NODE"
	OpUpdateEdge OperationType = "UPDATE_EDGE"
	OpDeleteNode OperationType = "DELETE_NODE"
	OpDeleteEdge OperationType = "DELETE_EDGE"
)

// Operation is one logged mutation within a transaction. EntityID refers
// to a node or edge ID depending on the operation type; PageID is the page
// the mutation landed on.
type Operation struct {
	Type     OperationType
	EntityID int64
	PageID   uint32
}

// WAL is an in-memory, process-lifetime operation log. It records which
// mutations each transaction performed, in order, and keeps committed
// entries for inspection.
//
// This log is not durable and is not replayed: crash recovery is handled
// by the boot scan over the data file itself (pkg/graph). The log exists
// for observability and as the seam where a durable redo log would attach.
type WAL struct {
	entries []Entry
	log     *logrus.Entry
}

// Entry is the committed log record of a single transaction.
type Entry struct {
	TxnID      uint64
	Operations []Operation
}

// NewWAL creates an empty log.
func NewWAL() *WAL {
	return &WAL{log: logrus.WithField("component", "wal")}
}

// Append records a committed transaction.
func (w *WAL) Append(txnID uint64, ops []Operation) {
	w.entries = append(w.entries, Entry{TxnID: txnID, Operations: ops})
	w.log.WithFields(logrus.Fields{
		"txn": txnID,
		"ops": len(ops),
	}).Debug("transaction committed")
}

// Entries returns all committed entries in commit order. The returned
// slice is shared; callers must not modify it.
func (w *WAL) Entries() []Entry { return w.entries }

// Len returns the number of committed transactions.
func (w *WAL) Len() int { return len(w.entries) }
