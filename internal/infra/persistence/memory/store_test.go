package memory

import (
	"context"
	"errors"
	"testing"

	"qcref/internal/infra/persistence/storetest"
	"qcref/pkg/domain"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.PersistentStore { return NewStore() })
}

func TestMemoryStoreViewIsolatedFromCallerMutation(t *testing.T) {
	store := NewStore()
	rec := storetest.Seed(t, store, domain.NaturalKey{Program: "P", Batch: 1, Analyte: "A", Unit: "U"})[0]
	if err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(rec.ID, func(r *domain.Record) error {
			domain.EditRequest{Mean: domain.Float(1)}.Apply(r)
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		got, _, _ := v.FindRecord(rec.ID)
		*got.Mean = 99
		return nil
	})
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		got, _, _ := v.FindRecord(rec.ID)
		if *got.Mean != 1 {
			t.Fatalf("stored value leaked through returned pointer: %v", *got.Mean)
		}
		return nil
	})
}

func TestMemoryStoreMutatorErrorAborts(t *testing.T) {
	store := NewStore()
	rec := storetest.Seed(t, store, domain.NaturalKey{Program: "P", Batch: 1, Analyte: "A", Unit: "U"})[0]
	boom := errors.New("boom")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(rec.ID, func(*domain.Record) error { return boom })
		return err
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore()
	if err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := store.View(ctx, func(domain.TransactionView) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
