package testutil

import (
	"context"
	"testing"
)

func TestStubDBRecordsStatements(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE qc_records (id BIGSERIAL)"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := conn.Statements(); len(got) != 1 || got[0] != "CREATE TABLE qc_records (id BIGSERIAL)" {
		t.Fatalf("unexpected statements %v", got)
	}

	conn.FailExec = true
	if _, err := db.ExecContext(ctx, "SELECT 1"); err == nil {
		t.Fatalf("expected exec failure")
	}
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	if _, err := conn.Begin(); err == nil {
		t.Fatalf("expected begin to be unsupported")
	}
}
