package domain

import "context"

// TransactionView provides read-only access to records within a store scope.
type TransactionView interface {
	// ListPrograms returns distinct non-null programs in ascending order.
	ListPrograms() ([]string, error)
	// ListBatches returns the distinct batches of program in ascending order.
	ListBatches(program string) ([]int64, error)
	// ListRecords returns the records of a program batch ordered by analyte, then unit.
	ListRecords(program string, batch int64) ([]Record, error)
	FindRecord(id int64) (Record, bool, error)
	FindRecordByKey(key NaturalKey) (Record, bool, error)
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope.
type Transaction interface {
	TransactionView
	// UpdateRecord applies mutator to the record with the given id and persists
	// the reference values. Returns ErrNotFound when the id does not resolve.
	// Identity fields changed by the mutator are ignored.
	UpdateRecord(id int64, mutator func(*Record) error) (Record, error)
	// CreateRecordIfAbsent inserts a record with null reference values unless
	// the natural key already exists. created reports whether a row was inserted.
	CreateRecordIfAbsent(key NaturalKey) (record Record, created bool, err error)
}

// PersistentStore is a minimal abstraction over durable backends. Each call
// acquires its own transaction and releases it before returning.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	Ping(ctx context.Context) error
	Close() error
}
