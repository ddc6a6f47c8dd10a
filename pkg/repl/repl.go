// Package repl implements the interactive shell: dot meta-commands,
// database-administration verbs over a directory of .db files, and
// pass-through of everything else to the query engine.
package repl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aabr2612/KiteDB/pkg/kitedb"
	"github.com/aabr2612/KiteDB/pkg/storage"
)

// Session errors.
var (
	ErrNoDatabase      = errors.New("repl: no database selected, run USE <name>")
	ErrDatabaseExists  = errors.New("repl: database already exists")
	ErrDatabaseMissing = errors.New("repl: database does not exist")
)

// Session owns a directory of named databases (<dir>/<name>.db) and at
// most one open database at a time. Admin verbs manage the directory;
// any other input goes to the open database's query engine.
type Session struct {
	dir  string
	opts kitedb.Options

	db     *kitedb.DB
	dbName string

	log *logrus.Entry
}

// NewSession creates a session over dir, creating the directory if
// needed.
func NewSession(dir string, opts kitedb.Options) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Session{
		dir:  dir,
		opts: opts,
		log:  logrus.WithField("component", "repl"),
	}, nil
}

// Close closes the open database, if any.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.dbName = ""
	return err
}

// Current returns the name of the selected database, or "".
func (s *Session) Current() string { return s.dbName }

func (s *Session) dbPath(name string) string {
	return filepath.Join(s.dir, name+".db")
}

// Execute runs one input line and returns its printable output. The
// second return value is true when the session should exit.
func (s *Session) Execute(line string) (string, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, nil
	}

	if strings.HasPrefix(line, ".") {
		return s.metaCommand(line)
	}

	fields := strings.Fields(line)
	verb := strings.ToUpper(fields[0])
	rest := fields[1:]

	switch {
	case verb == "CREATE" && len(rest) >= 1 && strings.EqualFold(rest[0], "DATABASE"):
		return s.createDatabase(rest[1:])
	case verb == "DROP" && len(rest) >= 1 && strings.EqualFold(rest[0], "DATABASE"):
		return s.dropDatabase(rest[1:])
	case verb == "USE":
		return s.useDatabase(rest)
	case verb == "SHOW" && len(rest) == 1 && strings.EqualFold(rest[0], "DATABASES"):
		return s.showDatabases()
	case verb == "SHOW" && len(rest) == 1 && strings.EqualFold(rest[0], "NODES"):
		return s.showNodes()
	case verb == "SHOW" && len(rest) == 1 && strings.EqualFold(rest[0], "EDGES"):
		return s.showEdges()
	case verb == "DESCRIBE" && len(rest) == 1 && strings.EqualFold(rest[0], "DATABASE"):
		return s.describeDatabase()
	case verb == "CLEAR" && len(rest) == 1 && strings.EqualFold(rest[0], "DATABASE"):
		return s.clearDatabase()
	}

	return s.runQuery(line)
}

func (s *Session) metaCommand(line string) (string, bool, error) {
	switch line {
	case ".exit":
		return "bye", true, nil
	case ".help":
		return helpText, false, nil
	default:
		return "", false, fmt.Errorf("repl: unknown command %q, try .help", line)
	}
}

const helpText = `Meta commands:
  .help                  show this help
  .exit                  leave the shell

Database administration:
  CREATE DATABASE <name>   create an empty database file
  DROP DATABASE <name>     delete a database file
  USE <name>               select (and open) a database
  SHOW DATABASES           list database files
  SHOW NODES               list nodes of the selected database
  SHOW EDGES               list edges of the selected database
  DESCRIBE DATABASE        show size and content statistics
  CLEAR DATABASE           delete all data, keep the database

Anything else is executed as a query, e.g.:
  CREATE (a:Person {name: "Alice", age: 30})
  MATCH (n:Person) WHERE n.name = "Alice" RETURN n`

func (s *Session) createDatabase(args []string) (string, bool, error) {
	if len(args) != 1 {
		return "", false, fmt.Errorf("repl: usage: CREATE DATABASE <name>")
	}
	name := args[0]
	path := s.dbPath(name)
	if _, err := os.Stat(path); err == nil {
		return "", false, fmt.Errorf("%w: %s", ErrDatabaseExists, name)
	}
	db, err := kitedb.Open(path, s.opts)
	if err != nil {
		return "", false, err
	}
	if err := db.Close(); err != nil {
		return "", false, err
	}
	return fmt.Sprintf("created database %s", name), false, nil
}

func (s *Session) dropDatabase(args []string) (string, bool, error) {
	if len(args) != 1 {
		return "", false, fmt.Errorf("repl: usage: DROP DATABASE <name>")
	}
	name := args[0]
	path := s.dbPath(name)
	if _, err := os.Stat(path); err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrDatabaseMissing, name)
	}
	if s.dbName == name {
		if err := s.Close(); err != nil {
			return "", false, err
		}
	}
	if err := os.Remove(path); err != nil {
		return "", false, fmt.Errorf("drop database: %w", err)
	}
	return fmt.Sprintf("dropped database %s", name), false, nil
}

func (s *Session) useDatabase(args []string) (string, bool, error) {
	if len(args) != 1 {
		return "", false, fmt.Errorf("repl: usage: USE <name>")
	}
	name := args[0]
	if _, err := os.Stat(s.dbPath(name)); err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrDatabaseMissing, name)
	}
	if err := s.Close(); err != nil {
		return "", false, err
	}
	db, err := kitedb.Open(s.dbPath(name), s.opts)
	if err != nil {
		return "", false, err
	}
	s.db = db
	s.dbName = name
	return fmt.Sprintf("using database %s", name), false, nil
}

func (s *Session) showDatabases() (string, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false, fmt.Errorf("list databases: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".db"))
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "no databases", false, nil
	}
	return strings.Join(names, "\n"), false, nil
}

func (s *Session) showNodes() (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNoDatabase
	}
	nodes, err := s.db.Nodes()
	if err != nil {
		return "", false, err
	}
	var b strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&b, "node %d labels=%v props=%v\n",
			n.ID, n.Labels, storage.PropertiesToMap(n.Properties))
	}
	if b.Len() == 0 {
		return "no nodes", false, nil
	}
	return strings.TrimRight(b.String(), "\n"), false, nil
}

func (s *Session) showEdges() (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNoDatabase
	}
	edges, err := s.db.Edges()
	if err != nil {
		return "", false, err
	}
	var b strings.Builder
	for _, e := range edges {
		fmt.Fprintf(&b, "edge %d type=%s %d->%d props=%v\n",
			e.ID, e.Type, e.Source, e.Target, storage.PropertiesToMap(e.Properties))
	}
	if b.Len() == 0 {
		return "no edges", false, nil
	}
	return strings.TrimRight(b.String(), "\n"), false, nil
}

func (s *Session) describeDatabase() (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNoDatabase
	}
	out, err := json.MarshalIndent(s.db.Describe(), "", "  ")
	if err != nil {
		return "", false, err
	}
	return string(out), false, nil
}

// clearDatabase drops all data but keeps the database selected: the file
// is removed and recreated empty.
func (s *Session) clearDatabase() (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNoDatabase
	}
	name := s.dbName
	if err := s.Close(); err != nil {
		return "", false, err
	}
	if err := os.Remove(s.dbPath(name)); err != nil {
		return "", false, fmt.Errorf("clear database: %w", err)
	}
	db, err := kitedb.Open(s.dbPath(name), s.opts)
	if err != nil {
		return "", false, err
	}
	s.db = db
	s.dbName = name
	return fmt.Sprintf("cleared database %s", name), false, nil
}

func (s *Session) runQuery(query string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNoDatabase
	}
	rows, err := s.db.ExecuteQuery(query)
	if err != nil {
		return "", false, err
	}
	if rows == nil {
		return "ok", false, nil
	}
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", false, err
	}
	return string(out), false, nil
}

// Run drives the read-eval-print loop until .exit or EOF. Errors are
// printed, not fatal.
func (s *Session) Run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		prompt := "kitedb"
		if s.dbName != "" {
			prompt += ":" + s.dbName
		}
		fmt.Fprintf(out, "%s> ", prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		result, exit, err := s.Execute(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if result != "" {
			fmt.Fprintln(out, result)
		}
		if exit {
			return nil
		}
	}
}
