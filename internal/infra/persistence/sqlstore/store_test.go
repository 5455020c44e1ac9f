package sqlstore_test

import (
	"context"
	"testing"

	"qcref/internal/infra/persistence/sqlite"
	"qcref/internal/infra/persistence/sqlstore"
	"qcref/pkg/domain"
)

func TestRebind(t *testing.T) {
	numbered := sqlstore.Dialect{NumberedPlaceholders: true}
	if got := numbered.Rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	plain := sqlstore.Dialect{}
	if got := plain.Rebind("a = ?"); got != "a = ?" {
		t.Fatalf("plain dialect must not rewrite, got %q", got)
	}
}

func TestPanicRollsBackAndPropagates(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected panic to propagate, got %v", r)
			}
		}()
		_ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, _, err := tx.CreateRecordIfAbsent(domain.NaturalKey{Program: "P", Batch: 1, Analyte: "A", Unit: "U"}); err != nil {
				t.Fatalf("create: %v", err)
			}
			panic("boom")
		})
	}()

	if err := store.View(ctx, func(v domain.TransactionView) error {
		programs, err := v.ListPrograms()
		if err != nil {
			return err
		}
		if len(programs) != 0 {
			t.Fatalf("panicked transaction committed: %v", programs)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCancelledContextFailsToBegin(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); err == nil {
		t.Fatalf("expected begin to fail on cancelled context")
	}
}
