package cypher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabr2612/KiteDB/pkg/graph"
	"github.com/aabr2612/KiteDB/pkg/index"
	"github.com/aabr2612/KiteDB/pkg/storage"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	pager, err := storage.OpenPager(filepath.Join(t.TempDir(), "exec.db"), 512)
	require.NoError(t, err)
	t.Cleanup(func() { pager.Close() })

	pool := storage.NewBufferPool(pager, 16)
	mgr := graph.NewManager(pool, index.New(), storage.NewTxManager(storage.NewWAL()))
	return NewExecutor(mgr)
}

func run(t *testing.T, ex *Executor, query string) []Row {
	t.Helper()
	ast, err := Parse(query)
	require.NoError(t, err, query)
	rows, err := ex.Execute(ast)
	require.NoError(t, err, query)
	return rows
}

func runErr(t *testing.T, ex *Executor, query string) error {
	t.Helper()
	ast, err := Parse(query)
	require.NoError(t, err, query)
	_, err = ex.Execute(ast)
	require.Error(t, err, query)
	return err
}

func nodeVal(t *testing.T, row Row, name string) map[string]any {
	t.Helper()
	v, ok := row[name].(map[string]any)
	require.True(t, ok, "row has %s", name)
	return v
}

func TestCreateAndMatchNode(t *testing.T) {
	ex := newTestExecutor(t)

	rows := run(t, ex, `CREATE (a:Person {name: "Alice", age: 30})`)
	assert.Nil(t, rows, "no RETURN, no rows")

	rows = run(t, ex, `MATCH (n:Person) WHERE n.name = "Alice" RETURN n`)
	require.Len(t, rows, 1)

	n := nodeVal(t, rows[0], "n")
	assert.Equal(t, []string{"Person"}, n["labels"])
	assert.GreaterOrEqual(t, n["id"].(int64), int64(1))
	props := n["properties"].(map[string]any)
	assert.Equal(t, "Alice", props["name"])
	assert.Equal(t, int64(30), props["age"])
}

func TestSetMergesKeys(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name: "Alice", age: 30})`)
	run(t, ex, `MATCH (n:Person) WHERE n.name = "Alice" SET n.age = 31`)

	rows := run(t, ex, `MATCH (n:Person) RETURN n`)
	require.Len(t, rows, 1)
	props := nodeVal(t, rows[0], "n")["properties"].(map[string]any)
	assert.Equal(t, "Alice", props["name"], "untouched key preserved")
	assert.Equal(t, int64(31), props["age"], "patched key overwritten")
}

func TestCreateRelationship(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name:"A"})-[r:KNOWS {since:2020}]->(b:Person {name:"B"})`)

	rows := run(t, ex, `MATCH ()-[r:KNOWS]->() RETURN r`)
	require.Len(t, rows, 1)

	r := nodeVal(t, rows[0], "r")
	assert.Equal(t, "KNOWS", r["type"])
	assert.Equal(t, int64(2020), r["properties"].(map[string]any)["since"])

	// endpoints must be the two created Person nodes
	people := run(t, ex, `MATCH (n:Person) RETURN n`)
	require.Len(t, people, 2)
	srcID := nodeVal(t, people[0], "n")["id"]
	tgtID := nodeVal(t, people[1], "n")["id"]
	assert.Equal(t, srcID, r["source"])
	assert.Equal(t, tgtID, r["target"])
}

func TestCreateRelationshipReusesSingletonBinding(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name:"A"})`)

	// a is bound to exactly one node by MATCH+WHERE, so the edge reuses it
	run(t, ex, `MATCH (a:Person) WHERE a.name = "A" CREATE (a)-[r:LIKES]->(b:Thing)`)

	rows := run(t, ex, `MATCH (n:Person) RETURN n`)
	assert.Len(t, rows, 1, "no duplicate Person created")

	edges := run(t, ex, `MATCH (x)-[r:LIKES]->(y) RETURN r, x, y`)
	require.Len(t, edges, 3, "edge plus both endpoints")
}

func TestMatchRelationshipBindsEndpoints(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name:"A"})-[r:KNOWS]->(b:Person {name:"B"})`)

	rows := run(t, ex, `MATCH (x)-[r:KNOWS]->(y) RETURN x, y`)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", nodeVal(t, rows[0], "x")["properties"].(map[string]any)["name"])
	assert.Equal(t, "B", nodeVal(t, rows[1], "y")["properties"].(map[string]any)["name"])
}

func TestWhereIsTyped(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Item {code: "1"})`)
	run(t, ex, `CREATE (b:Item {code: 1})`)

	rows := run(t, ex, `MATCH (n:Item) WHERE n.code = 1 RETURN n`)
	require.Len(t, rows, 1, "string \"1\" must not match integer 1")
	props := nodeVal(t, rows[0], "n")["properties"].(map[string]any)
	assert.Equal(t, int64(1), props["code"])
}

func TestWhereBoolean(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:User {name:"A", active:true})`)
	run(t, ex, `CREATE (a:User {name:"B", active:false})`)

	rows := run(t, ex, `MATCH (n:User) WHERE n.active = true RETURN n`)
	require.Len(t, rows, 1)
	props := nodeVal(t, rows[0], "n")["properties"].(map[string]any)
	assert.Equal(t, "A", props["name"])

	t.Run("case-insensitive literal", func(t *testing.T) {
		rows := run(t, ex, `MATCH (n:User) WHERE n.active = TRUE RETURN n`)
		assert.Len(t, rows, 1)
	})

	t.Run("missing key filters out", func(t *testing.T) {
		rows := run(t, ex, `MATCH (n:User) WHERE n.ghost = 1 RETURN n`)
		assert.Empty(t, rows)
	})
}

func TestDeleteInvisibility(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name:"A"})`)
	run(t, ex, `MATCH (n:Person) DELETE n`)

	rows := run(t, ex, `MATCH (n:Person) RETURN n`)
	assert.Empty(t, rows)
}

func TestDeleteEdges(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person)-[r:KNOWS]->(b:Person)`)
	run(t, ex, `MATCH ()-[r:KNOWS]->() DELETE r`)

	rows := run(t, ex, `MATCH ()-[r:KNOWS]->() RETURN r`)
	assert.Empty(t, rows)

	people := run(t, ex, `MATCH (n:Person) RETURN n`)
	assert.Len(t, people, 2, "endpoints survive edge deletion")
}

func TestDeleteErrors(t *testing.T) {
	ex := newTestExecutor(t)

	t.Run("unbound variable is an error", func(t *testing.T) {
		err := runErr(t, ex, "DELETE ghost")
		assert.ErrorIs(t, err, ErrUnboundVariable)
	})

	t.Run("empty binding is a no-op", func(t *testing.T) {
		run(t, ex, `MATCH (n:Nobody) DELETE n`)
	})
}

func TestReturnDeduplicates(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name:"A"})`)

	// a and n bind the same node; RETURN a, n must yield one row
	rows := run(t, ex, `MATCH (a:Person) MATCH (n:Person) RETURN a, n`)
	assert.Len(t, rows, 1)
}

func TestExecutorErrors(t *testing.T) {
	ex := newTestExecutor(t)

	t.Run("match node without label", func(t *testing.T) {
		err := runErr(t, ex, "MATCH (n) RETURN n")
		assert.ErrorIs(t, err, ErrMissingLabel)
	})

	t.Run("relationship without type", func(t *testing.T) {
		err := runErr(t, ex, "CREATE (a)-[r]->(b)")
		assert.ErrorIs(t, err, ErrMissingRelType)

		err = runErr(t, ex, "MATCH ()-[r]->() RETURN r")
		assert.ErrorIs(t, err, ErrMissingRelType)
	})

	t.Run("where on unbound variable", func(t *testing.T) {
		err := runErr(t, ex, `WHERE n.k = 1`)
		assert.ErrorIs(t, err, ErrUnboundVariable)
	})

	t.Run("return on unbound variable", func(t *testing.T) {
		err := runErr(t, ex, "RETURN nothing")
		assert.ErrorIs(t, err, ErrUnboundVariable)
	})

	t.Run("set on unbound variable", func(t *testing.T) {
		err := runErr(t, ex, "SET n.k = 1")
		assert.ErrorIs(t, err, ErrUnboundVariable)
	})
}

func TestSetRefreshesBindings(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {age: 30})`)

	// the RETURN in the same query must see the updated value
	rows := run(t, ex, `MATCH (n:Person) SET n.age = 31 RETURN n`)
	require.Len(t, rows, 1)
	props := nodeVal(t, rows[0], "n")["properties"].(map[string]any)
	assert.Equal(t, int64(31), props["age"])
}

func TestSetIdempotent(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, `CREATE (a:Person {name:"A"})`)
	run(t, ex, `MATCH (n:Person) SET n.age = 31`)
	run(t, ex, `MATCH (n:Person) SET n.age = 31`)

	rows := run(t, ex, `MATCH (n:Person) RETURN n`)
	require.Len(t, rows, 1)
	props := nodeVal(t, rows[0], "n")["properties"].(map[string]any)
	assert.Equal(t, int64(31), props["age"])
	assert.Len(t, props, 2, "no duplicate keys accumulated")
}
