// Package kitedb is the embedded API of the KiteDB graph engine: a
// single-file labeled property graph queried with a Cypher subset.
//
// A DB wires together the paged storage file, the LRU buffer pool, the
// in-memory indexes, the graph manager and the query executor. Opening a
// file that already holds data rebuilds the indexes by scanning the record
// pages, so IDs and entities survive restarts.
//
// Example:
//
//	db, err := kitedb.Open("social.db", kitedb.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, err = db.ExecuteQuery(`CREATE (a:Person {name: "Alice", age: 30})`)
//	rows, err := db.ExecuteQuery(`MATCH (n:Person) WHERE n.name = "Alice" RETURN n`)
//
// A DB is not safe for concurrent use; wrap calls in a mutex to share one
// between goroutines (pkg/server does exactly that).
package kitedb

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aabr2612/KiteDB/pkg/cypher"
	"github.com/aabr2612/KiteDB/pkg/graph"
	"github.com/aabr2612/KiteDB/pkg/index"
	"github.com/aabr2612/KiteDB/pkg/storage"
)

// ErrClosed is returned for operations on a closed DB.
var ErrClosed = errors.New("kitedb: database is closed")

// Row is one query result row, keyed by RETURN identifier.
type Row = cypher.Row

// Options configure a database instance.
type Options struct {
	// PageSize is the fixed page size in bytes. It is recorded in the
	// file header on creation and must match on reopen.
	PageSize uint32
	// BufferCapacity is the maximum number of pages the buffer pool
	// caches. Values below 1 are clamped to 1.
	BufferCapacity int
}

// DefaultOptions returns 4 KiB pages and a 100-page buffer pool.
func DefaultOptions() Options {
	return Options{PageSize: 4096, BufferCapacity: 100}
}

// DB is an open database instance.
type DB struct {
	path  string
	pager *storage.Pager
	pool  *storage.BufferPool
	wal   *storage.WAL
	mgr   *graph.Manager
	exec  *cypher.Executor
	log   *logrus.Entry
}

// Open opens (or creates) the database file at path and rebuilds the
// in-memory indexes from its records.
func Open(path string, opts Options) (*DB, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	if opts.BufferCapacity == 0 {
		opts.BufferCapacity = DefaultOptions().BufferCapacity
	}

	pager, err := storage.OpenPager(path, opts.PageSize)
	if err != nil {
		return nil, err
	}
	pool := storage.NewBufferPool(pager, opts.BufferCapacity)
	wal := storage.NewWAL()
	mgr := graph.NewManager(pool, index.New(), storage.NewTxManager(wal))
	if err := mgr.Rebuild(); err != nil {
		pager.Close()
		return nil, err
	}

	db := &DB{
		path:  path,
		pager: pager,
		pool:  pool,
		wal:   wal,
		mgr:   mgr,
		exec:  cypher.NewExecutor(mgr),
		log:   logrus.WithField("component", "kitedb"),
	}
	db.log.WithFields(logrus.Fields{
		"path":  path,
		"nodes": mgr.NodeCount(),
		"edges": mgr.EdgeCount(),
	}).Info("database open")
	return db, nil
}

// ExecuteQuery parses and runs one query, returning its RETURN rows (nil
// when the query has none). Clauses run in source order within a single
// transaction; on error, effects of clauses that already ran are kept.
func (db *DB) ExecuteQuery(query string) ([]Row, error) {
	if db.pager == nil {
		return nil, ErrClosed
	}
	ast, err := cypher.Parse(query)
	if err != nil {
		return nil, err
	}
	rows, err := db.exec.Execute(ast)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return rows, nil
}

// Close syncs the file header and releases the file handle. Close must be
// called exactly once per successful Open; further calls return ErrClosed.
func (db *DB) Close() error {
	if db.pager == nil {
		return ErrClosed
	}
	err := db.pager.Close()
	db.pager = nil
	db.log.WithField("path", db.path).Info("database closed")
	return err
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Labels returns all labels with at least one live node, sorted.
func (db *DB) Labels() []string { return db.mgr.Labels() }

// Nodes returns every live node in ascending ID order.
func (db *DB) Nodes() ([]*storage.Node, error) {
	if db.pager == nil {
		return nil, ErrClosed
	}
	return db.mgr.AllNodes()
}

// Edges returns every live edge in ascending ID order.
func (db *DB) Edges() ([]*storage.Edge, error) {
	if db.pager == nil {
		return nil, ErrClosed
	}
	return db.mgr.AllEdges()
}

// Stats describe an open database.
type Stats struct {
	Path         string   `json:"path"`
	PageSize     uint32   `json:"page_size"`
	PageCount    uint32   `json:"page_count"`
	NodeCount    int      `json:"node_count"`
	EdgeCount    int      `json:"edge_count"`
	Labels       []string `json:"labels"`
	Transactions int      `json:"transactions"`
}

// Describe returns a snapshot of the database's size and contents.
func (db *DB) Describe() Stats {
	return Stats{
		Path:         db.path,
		PageSize:     db.pool.PageSize(),
		PageCount:    db.pool.PageCount(),
		NodeCount:    db.mgr.NodeCount(),
		EdgeCount:    db.mgr.EdgeCount(),
		Labels:       db.mgr.Labels(),
		Transactions: db.wal.Len(),
	}
}
