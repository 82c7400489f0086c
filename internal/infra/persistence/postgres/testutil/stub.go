// Package testutil provides an in-memory stand-in for the postgres documents
// table so store tests run without a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Document is one stored row of the documents table.
type Document struct {
	Payload   []byte
	UpdatedAt time.Time
}

// StubConn is a database/sql connection that understands exactly the
// statements the postgres document store issues: the table DDL, the upsert,
// the keyed and ordered selects and the keyed delete. Anything else fails.
type StubConn struct {
	mu    sync.Mutex
	Execs []string
	Docs  map[string]Document

	FailExec   bool  // every Exec and Ping fails
	FailQuery  bool  // every Query fails
	FailBegin  bool  // Begin fails
	FailCommit bool  // Commit fails
	RowsErr    error // returned by Next once the rows are exhausted
}

var stubSeq atomic.Uint64

// NewStubDB registers a fresh driver and returns a sql.DB bound to it with
// the connection backing it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Docs: make(map[string]Document)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn. Statements go through ExecContext and
// QueryContext instead.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("stub: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return fmt.Errorf("stub: ping failed")
	}
	return nil
}

type statement int

const (
	stmtUnknown statement = iota
	stmtCreate
	stmtUpsert
	stmtDelete
	stmtSelectOne
	stmtSelectAll
)

func classify(query string) statement {
	q := strings.ToUpper(strings.Join(strings.Fields(query), " "))
	switch {
	case strings.HasPrefix(q, "CREATE TABLE IF NOT EXISTS DOCUMENTS"):
		return stmtCreate
	case strings.HasPrefix(q, "INSERT INTO DOCUMENTS") && strings.Contains(q, "ON CONFLICT (RESOURCE)"):
		return stmtUpsert
	case strings.HasPrefix(q, "DELETE FROM DOCUMENTS WHERE RESOURCE = $1"):
		return stmtDelete
	case strings.HasPrefix(q, "SELECT") && strings.Contains(q, "FROM DOCUMENTS WHERE RESOURCE = $1"):
		return stmtSelectOne
	case strings.HasPrefix(q, "SELECT") && strings.HasSuffix(q, "FROM DOCUMENTS ORDER BY RESOURCE"):
		return stmtSelectAll
	}
	return stmtUnknown
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("stub: exec failed")
	}
	switch classify(query) {
	case stmtCreate:
		return driver.RowsAffected(0), nil
	case stmtUpsert:
		if len(args) < 2 {
			return nil, fmt.Errorf("stub: upsert wants resource and payload, got %d args", len(args))
		}
		key, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("stub: resource must be a string, got %T", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("stub: payload must be bytes, got %T", args[1].Value)
		}
		doc := Document{Payload: append([]byte(nil), payload...), UpdatedAt: time.Now().UTC()}
		if len(args) > 2 {
			if ts, ok := args[2].Value.(time.Time); ok {
				doc.UpdatedAt = ts
			}
		}
		c.Docs[key] = doc
		return driver.RowsAffected(1), nil
	case stmtDelete:
		if len(args) == 0 {
			return nil, fmt.Errorf("stub: delete without resource")
		}
		key, _ := args[0].Value.(string)
		if _, ok := c.Docs[key]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.Docs, key)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stub: unsupported exec %q", query)
}

// QueryContext implements driver.QueryerContext. Rows carry the columns
// resource, payload and updated_at.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("stub: query failed")
	}
	var keys []string
	switch classify(query) {
	case stmtSelectOne:
		if len(args) == 0 {
			return nil, fmt.Errorf("stub: select without resource")
		}
		key, _ := args[0].Value.(string)
		if _, ok := c.Docs[key]; ok {
			keys = []string{key}
		}
	case stmtSelectAll:
		for key := range c.Docs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
	default:
		return nil, fmt.Errorf("stub: unsupported query %q", query)
	}
	rows := &stubRows{err: c.RowsErr}
	for _, key := range keys {
		doc := c.Docs[key]
		rows.rows = append(rows.rows, []driver.Value{key, append([]byte(nil), doc.Payload...), doc.UpdatedAt})
	}
	return rows, nil
}

type stubTx struct {
	conn *StubConn
}

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("stub: commit failed")
	}
	return nil
}

func (t stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"resource", "payload", "updated_at"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
