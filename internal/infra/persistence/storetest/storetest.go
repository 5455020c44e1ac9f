// Package storetest holds the behavioural contract every domain.PersistentStore
// implementation must satisfy. Backend packages call Run from their tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"qcref/pkg/domain"
)

// Opener returns a fresh, empty store. Implementations register cleanup on t.
type Opener func(t *testing.T) domain.PersistentStore

// Run executes the contract suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()
	t.Run("CreateIfAbsentIsIdempotent", func(t *testing.T) { testCreateIfAbsent(t, open(t)) })
	t.Run("ListingsFilterAndSort", func(t *testing.T) { testListings(t, open(t)) })
	t.Run("UpdateRecordWritesValues", func(t *testing.T) { testUpdate(t, open(t)) })
	t.Run("UpdateUnknownIDNotFound", func(t *testing.T) { testUpdateNotFound(t, open(t)) })
	t.Run("FailedTransactionRollsBack", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("ConcurrentInsertOfSameKey", func(t *testing.T) { testConcurrentInsert(t, open(t)) })
}

// Seed inserts the keys in a single transaction and returns the created records.
func Seed(t *testing.T, store domain.PersistentStore, keys ...domain.NaturalKey) []domain.Record {
	t.Helper()
	out := make([]domain.Record, 0, len(keys))
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, key := range keys {
			rec, _, err := tx.CreateRecordIfAbsent(key)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out
}

func key(program string, batch int64, analyte, unit string) domain.NaturalKey {
	return domain.NaturalKey{Program: program, Batch: batch, Analyte: analyte, Unit: unit}
}

func testCreateIfAbsent(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	k := key("Chemistry", 101, "Glucose", "mg/dL")
	var first, second domain.Record
	var created1, created2 bool
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		first, created1, err = tx.CreateRecordIfAbsent(k)
		if err != nil {
			return err
		}
		second, created2, err = tx.CreateRecordIfAbsent(k)
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created1 || created2 {
		t.Fatalf("expected first insert only, got created=%v,%v", created1, created2)
	}
	if first.ID == 0 || first.ID != second.ID {
		t.Fatalf("expected same non-zero id, got %d and %d", first.ID, second.ID)
	}
	if first.Mean != nil || first.StandardDeviation != nil {
		t.Fatalf("new record must have null reference values")
	}
	if err := store.View(ctx, func(v domain.TransactionView) error {
		rec, ok, err := v.FindRecordByKey(k)
		if err != nil {
			return err
		}
		if !ok || rec.ID != first.ID {
			t.Fatalf("lookup by key returned %+v, %v", rec, ok)
		}
		_, ok, err = v.FindRecordByKey(key("Chemistry", 101, "glucose", "mg/dL"))
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("natural key lookup must be case-sensitive")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testListings(t *testing.T, store domain.PersistentStore) {
	Seed(t, store,
		key("Immunology", 7, "TSH", "mIU/L"),
		key("Chemistry", 2, "Sodium", "mmol/L"),
		key("Chemistry", 1, "Glucose", "mmol/L"),
		key("Chemistry", 1, "Glucose", "mg/dL"),
		key("Chemistry", 1, "Albumin", "g/L"),
		key("Chemistry", 2, "Albumin", "g/L"),
	)
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		programs, err := v.ListPrograms()
		if err != nil {
			return err
		}
		if len(programs) != 2 || programs[0] != "Chemistry" || programs[1] != "Immunology" {
			t.Fatalf("unexpected programs %v", programs)
		}
		batches, err := v.ListBatches("Chemistry")
		if err != nil {
			return err
		}
		if len(batches) != 2 || batches[0] != 1 || batches[1] != 2 {
			t.Fatalf("unexpected batches %v", batches)
		}
		none, err := v.ListBatches("Hematology")
		if err != nil {
			return err
		}
		if none == nil || len(none) != 0 {
			t.Fatalf("expected empty non-nil batches, got %#v", none)
		}
		records, err := v.ListRecords("Chemistry", 1)
		if err != nil {
			return err
		}
		want := []string{"Albumin g/L", "Glucose mg/dL", "Glucose mmol/L"}
		if len(records) != len(want) {
			t.Fatalf("expected %d records, got %d", len(want), len(records))
		}
		for i, rec := range records {
			if rec.Program != "Chemistry" || rec.Batch != 1 {
				t.Fatalf("record outside filter: %+v", rec)
			}
			if got := rec.Analyte + " " + rec.Unit; got != want[i] {
				t.Fatalf("position %d: expected %s, got %s", i, want[i], got)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testUpdate(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	rec := Seed(t, store, key("Chemistry", 1, "Glucose", "mg/dL"))[0]
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(rec.ID, func(r *domain.Record) error {
			domain.EditRequest{Mean: domain.Float(4.5), StandardDeviation: domain.Float(0.8)}.Apply(r)
			r.Program = "ignored"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(rec.ID, func(r *domain.Record) error {
			domain.EditRequest{Mean: domain.Null()}.Apply(r)
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.View(ctx, func(v domain.TransactionView) error {
		got, ok, err := v.FindRecord(rec.ID)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("record %d missing", rec.ID)
		}
		if got.Mean != nil {
			t.Fatalf("expected cleared mean, got %v", *got.Mean)
		}
		if got.StandardDeviation == nil || *got.StandardDeviation != 0.8 {
			t.Fatalf("expected standard deviation 0.8, got %v", got.StandardDeviation)
		}
		if got.Program != "Chemistry" {
			t.Fatalf("identity fields must not change, got %q", got.Program)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testUpdateNotFound(t *testing.T, store domain.PersistentStore) {
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(9999, nil)
		return err
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.ID != 9999 {
		t.Fatalf("expected ErrNotFound for 9999, got %v", err)
	}
}

func testRollback(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, _, err := tx.CreateRecordIfAbsent(key("Chemistry", 1, "Glucose", "mg/dL")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := store.View(ctx, func(v domain.TransactionView) error {
		programs, err := v.ListPrograms()
		if err != nil {
			return err
		}
		if len(programs) != 0 {
			t.Fatalf("rolled back insert is visible: %v", programs)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testConcurrentInsert(t *testing.T, store domain.PersistentStore) {
	const workers = 8
	k := key("Chemistry", 5, "Urea", "mmol/L")
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, ok, err := tx.CreateRecordIfAbsent(k)
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
				return err
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("concurrent inserts failed: %v", errs)
	}
	if created != 1 {
		t.Fatalf("expected exactly one insert, got %d", created)
	}
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		records, err := v.ListRecords("Chemistry", 5)
		if err != nil {
			return err
		}
		if len(records) != 1 {
			t.Fatalf("expected one record, got %d", len(records))
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}
