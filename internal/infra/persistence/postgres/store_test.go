package postgres

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"qcref/internal/infra/persistence/postgres/testutil"
	"qcref/internal/infra/persistence/storetest"
	"qcref/pkg/domain"
)

func TestNewStoreAppliesDDL(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %s", driverName)
		}
		if dsn != defaultDSN {
			t.Fatalf("expected default dsn, got %s", dsn)
		}
		return db, nil
	})
	defer restore()

	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	stmts := conn.Statements()
	if len(stmts) != len(Dialect.Schema) {
		t.Fatalf("expected %d ddl statements, got %d", len(Dialect.Schema), len(stmts))
	}
	if !strings.Contains(stmts[0], "BIGSERIAL") || !strings.Contains(stmts[0], "uq_qc_records_key") {
		t.Fatalf("unexpected table ddl: %s", stmts[0])
	}
	if store.Dialect().Name != "postgres" {
		t.Fatalf("unexpected dialect %s", store.Dialect().Name)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStoreDDLFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "execute ddl") {
		t.Fatalf("expected ddl error, got %v", err)
	}
}

func TestDialectRebind(t *testing.T) {
	got := Dialect.Rebind("SELECT 1 FROM t WHERE a = ? AND b = ?")
	if got != "SELECT 1 FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
}

// TestPostgresStoreContract runs against a live server when QCREF_TEST_POSTGRES_DSN is set.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("QCREF_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QCREF_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) domain.PersistentStore {
		store, err := NewStore(context.Background(), dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		if _, err := store.DB().Exec(`TRUNCATE TABLE qc_records RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
