package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
	"time"
)

const upsert = `INSERT INTO documents (resource, payload, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (resource) DO UPDATE SET payload = EXCLUDED.payload`

func TestStubUpsertsAndSelectsDocuments(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, payload := range []string{"[1]", "[2]"} {
		args := []driver.NamedValue{{Value: "tasks.json"}, {Value: []byte(payload)}, {Value: stamp}}
		if _, err := conn.ExecContext(ctx, upsert, args); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "issues.json"}, {Value: []byte("[]")}}); err != nil {
		t.Fatalf("upsert without timestamp: %v", err)
	}
	if len(conn.Docs) != 2 || string(conn.Docs["tasks.json"].Payload) != "[2]" || !conn.Docs["tasks.json"].UpdatedAt.Equal(stamp) {
		t.Fatalf("unexpected documents %+v", conn.Docs)
	}

	rows, err := conn.QueryContext(ctx, "SELECT resource, payload, updated_at FROM documents WHERE resource = $1", []driver.NamedValue{{Value: "tasks.json"}})
	if err != nil {
		t.Fatalf("select one: %v", err)
	}
	dest := make([]driver.Value, 3)
	if err := rows.Next(dest); err != nil || dest[0] != "tasks.json" || string(dest[1].([]byte)) != "[2]" {
		t.Fatalf("unexpected row %v: %v", dest, err)
	}
	if err := rows.Next(dest); err != io.EOF {
		t.Fatalf("expected a single row, got %v", err)
	}

	all, err := conn.QueryContext(ctx, "SELECT resource, payload, updated_at FROM documents ORDER BY resource", nil)
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if err := all.Next(dest); err != nil || dest[0] != "issues.json" {
		t.Fatalf("rows should be ordered by resource, got %v: %v", dest[0], err)
	}

	res, err := conn.ExecContext(ctx, "DELETE FROM documents WHERE resource = $1", []driver.NamedValue{{Value: "missing"}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		t.Fatalf("deleting a missing document should affect 0 rows, got %d", n)
	}
}

func TestStubRejectsUnknownStatements(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	if _, err := conn.ExecContext(ctx, "TRUNCATE TABLE documents", nil); err == nil {
		t.Fatalf("unsupported exec should fail")
	}
	if _, err := conn.QueryContext(ctx, "SELECT 1", nil); err == nil {
		t.Fatalf("unsupported query should fail")
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: 1}, {Value: []byte("[]")}}); err == nil {
		t.Fatalf("non-string resource should fail")
	}
}

func TestStubFailureToggles(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailQuery = true
	if _, err := conn.QueryContext(ctx, "SELECT resource, payload, updated_at FROM documents ORDER BY resource", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	conn.FailExec = true
	if _, err := conn.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS documents (resource TEXT)", nil); err == nil {
		t.Fatalf("expected exec failure")
	}
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailBegin = true
	if _, err := conn.Begin(); err == nil {
		t.Fatalf("expected begin failure")
	}
}
