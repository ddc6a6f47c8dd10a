// Package server exposes a database over a line-based TCP protocol:
// newline-terminated query strings in, one JSON object per line out.
//
// Response shape:
//
//	{"status":"success","message":"2 rows","data":[...]}
//	{"status":"error","message":"cypher: parse error: ...","data":null}
//
// The engine is single-writer, so a mutex serializes all query execution
// across connections.
package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aabr2612/KiteDB/pkg/kitedb"
)

// Response is the wire shape of every reply line.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Server serves one database over TCP.
type Server struct {
	db *kitedb.DB

	mu sync.Mutex // serializes engine access
	ln net.Listener
	wg sync.WaitGroup

	log *logrus.Entry
}

// New creates a server for the given database.
func New(db *kitedb.DB) *Server {
	return &Server{
		db:  db,
		log: logrus.WithField("component", "server"),
	}
}

// ListenAndServe binds addr and serves until Close is called. It blocks.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	s.log.WithField("addr", ln.Addr().String()).Info("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Addr returns the bound address, or "" before Serve.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops accepting connections. In-flight queries finish; their
// connections close when the peer disconnects or errors.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.log.WithField("remote", remote).Debug("connection open")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := s.execute(line)
		if err := writeResponse(writer, resp); err != nil {
			s.log.WithField("remote", remote).WithError(err).Warn("write failed")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.WithField("remote", remote).WithError(err).Warn("read failed")
		return
	}
	s.log.WithField("remote", remote).Debug("connection closed")
}

func (s *Server) execute(query string) Response {
	s.mu.Lock()
	rows, err := s.db.ExecuteQuery(query)
	s.mu.Unlock()

	if err != nil {
		return Response{Status: "error", Message: err.Error()}
	}
	if rows == nil {
		rows = []kitedb.Row{}
	}
	return Response{
		Status:  "success",
		Message: fmt.Sprintf("%d rows", len(rows)),
		Data:    rows,
	}
}

func writeResponse(w *bufio.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		// a marshal failure must still produce a well-formed line
		payload = []byte(`{"status":"error","message":"internal: response encoding failed","data":null}`)
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
