package kitedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabr2612/KiteDB/pkg/cypher"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{PageSize: 512, BufferCapacity: 16})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustQuery(t *testing.T, db *DB, query string) []Row {
	t.Helper()
	rows, err := db.ExecuteQuery(query)
	require.NoError(t, err, query)
	return rows
}

func props(t *testing.T, row Row, name string) map[string]any {
	t.Helper()
	entity, ok := row[name].(map[string]any)
	require.True(t, ok)
	return entity["properties"].(map[string]any)
}

func TestCreateAndRead(t *testing.T) {
	db := openTestDB(t)

	mustQuery(t, db, `CREATE (a:Person {name: "Alice", age: 30})`)
	rows := mustQuery(t, db, `MATCH (n:Person) WHERE n.name = "Alice" RETURN n`)
	require.Len(t, rows, 1)

	n := rows[0]["n"].(map[string]any)
	assert.Equal(t, []string{"Person"}, n["labels"])
	assert.GreaterOrEqual(t, n["id"].(int64), int64(1))
	p := n["properties"].(map[string]any)
	assert.Equal(t, "Alice", p["name"])
	assert.Equal(t, int64(30), p["age"])
}

func TestUpdateMergesKeys(t *testing.T) {
	db := openTestDB(t)

	mustQuery(t, db, `CREATE (a:Person {name: "Alice", age: 30})`)
	mustQuery(t, db, `MATCH (n:Person) WHERE n.name = "Alice" SET n.age = 31`)

	rows := mustQuery(t, db, `MATCH (n:Person) RETURN n`)
	require.Len(t, rows, 1)
	p := props(t, rows[0], "n")
	assert.Equal(t, "Alice", p["name"])
	assert.Equal(t, int64(31), p["age"])
}

func TestRelationshipCreateAndRetrieve(t *testing.T) {
	db := openTestDB(t)

	mustQuery(t, db, `CREATE (a:Person {name:"A"})-[r:KNOWS {since:2020}]->(b:Person {name:"B"})`)
	rows := mustQuery(t, db, `MATCH ()-[r:KNOWS]->() RETURN r`)
	require.Len(t, rows, 1)

	r := rows[0]["r"].(map[string]any)
	assert.Equal(t, "KNOWS", r["type"])
	assert.Equal(t, int64(2020), r["properties"].(map[string]any)["since"])

	people := mustQuery(t, db, `MATCH (n:Person) RETURN n`)
	require.Len(t, people, 2)
	assert.Equal(t, people[0]["n"].(map[string]any)["id"], r["source"])
	assert.Equal(t, people[1]["n"].(map[string]any)["id"], r["target"])
}

func TestDeleteInvisibility(t *testing.T) {
	db := openTestDB(t)

	mustQuery(t, db, `CREATE (a:Person {name:"A"})`)
	mustQuery(t, db, `MATCH (n:Person) DELETE n`)
	rows := mustQuery(t, db, `MATCH (n:Person) RETURN n`)
	assert.Empty(t, rows)
}

func TestBooleanWhere(t *testing.T) {
	db := openTestDB(t)

	mustQuery(t, db, `CREATE (a:User {name:"A", active:true})`)
	mustQuery(t, db, `CREATE (a:User {name:"B", active:false})`)

	rows := mustQuery(t, db, `MATCH (n:User) WHERE n.active = true RETURN n`)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", props(t, rows[0], "n")["name"])
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	opts := Options{PageSize: 512, BufferCapacity: 16}

	db, err := Open(path, opts)
	require.NoError(t, err)
	mustQuery(t, db, `CREATE (a:Person {name:"A"})`)
	mustQuery(t, db, `CREATE (b:Person {name:"B"})`)
	mustQuery(t, db, `CREATE (c:Person {name:"C"})`)

	before := mustQuery(t, db, `MATCH (n:Person) RETURN n`)
	require.Len(t, before, 3)
	require.NoError(t, db.Close())

	db2, err := Open(path, opts)
	require.NoError(t, err)
	defer db2.Close()

	after := mustQuery(t, db2, `MATCH (n:Person) RETURN n`)
	require.Len(t, after, 3)
	for i := range before {
		beforeNode := before[i]["n"].(map[string]any)
		afterNode := after[i]["n"].(map[string]any)
		assert.Equal(t, beforeNode["id"], afterNode["id"], "ids survive reopen")
		assert.Equal(t, beforeNode["properties"], afterNode["properties"])
	}

	t.Run("edges and deletions persist too", func(t *testing.T) {
		mustQuery(t, db2, `MATCH (a:Person) WHERE a.name = "A" CREATE (a)-[r:KNOWS]->(b:Person {name:"D"})`)
		mustQuery(t, db2, `MATCH (n:Person) WHERE n.name = "B" DELETE n`)
		require.NoError(t, db2.Close())

		db3, err := Open(path, opts)
		require.NoError(t, err)
		defer db3.Close()

		edges := mustQuery(t, db3, `MATCH ()-[r:KNOWS]->() RETURN r`)
		assert.Len(t, edges, 1)
		people := mustQuery(t, db3, `MATCH (n:Person) RETURN n`)
		assert.Len(t, people, 3, "A, C and D; B deleted")
	})
}

func TestShortEdgeTypeSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.db")
	opts := Options{PageSize: 512, BufferCapacity: 16}

	db, err := Open(path, opts)
	require.NoError(t, err)
	mustQuery(t, db, `CREATE (a:Person {name:"A"})-[r:K]->(b:Person {name:"B"})`)
	require.NoError(t, db.Close())

	db2, err := Open(path, opts)
	require.NoError(t, err)
	defer db2.Close()

	edges, err := db2.Edges()
	require.NoError(t, err)
	require.Len(t, edges, 1, "single-character edge type must survive the reopen scan")
	assert.Equal(t, "K", edges[0].Type)
	assert.Equal(t, int64(1), edges[0].Source)
	assert.Equal(t, int64(2), edges[0].Target)

	nodes, err := db2.Nodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 2, "no phantom node recovered from the edge page")

	rows := mustQuery(t, db2, `MATCH ()-[r:K]->() RETURN r`)
	assert.Len(t, rows, 1)
}

func TestQueryErrors(t *testing.T) {
	db := openTestDB(t)

	t.Run("empty query is a parse error", func(t *testing.T) {
		_, err := db.ExecuteQuery("")
		assert.ErrorIs(t, err, cypher.ErrParse)
	})

	t.Run("syntax error carries position", func(t *testing.T) {
		_, err := db.ExecuteQuery("MATCH (n RETURN n")
		require.ErrorIs(t, err, cypher.ErrParse)
		assert.Contains(t, err.Error(), "at position")
	})

	t.Run("partial effects are kept on mid-query failure", func(t *testing.T) {
		_, err := db.ExecuteQuery(`CREATE (a:Kept {name:"X"}) DELETE ghost`)
		require.Error(t, err)

		rows := mustQuery(t, db, `MATCH (n:Kept) RETURN n`)
		assert.Len(t, rows, 1, "CREATE before the failing clause persisted")
	})
}

func TestDBSurface(t *testing.T) {
	db := openTestDB(t)
	mustQuery(t, db, `CREATE (a:Person {name:"A"})-[r:KNOWS]->(b:City {name:"Oslo"})`)

	assert.Equal(t, []string{"City", "Person"}, db.Labels())

	nodes, err := db.Nodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	edges, err := db.Edges()
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	stats := db.Describe()
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
	assert.Equal(t, uint32(512), stats.PageSize)
	assert.Greater(t, stats.PageCount, uint32(3), "header plus three records")
	assert.Equal(t, 1, stats.Transactions)
}

func TestClosedDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "c.db"), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.ExecuteQuery("MATCH (n:X) RETURN n")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Close(), ErrClosed)
}
