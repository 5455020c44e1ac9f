// Package memory provides an in-memory implementation of the record store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"

	"qcref/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	records map[int64]domain.Record
	keys    map[domain.NaturalKey]int64
	nextID  int64
}

func newMemoryState() memoryState {
	return memoryState{
		records: make(map[int64]domain.Record),
		keys:    make(map[domain.NaturalKey]int64),
		nextID:  1,
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		records: make(map[int64]domain.Record, len(s.records)),
		keys:    make(map[domain.NaturalKey]int64, len(s.keys)),
		nextID:  s.nextID,
	}
	for id, r := range s.records {
		out.records[id] = domain.CloneRecord(r)
	}
	for k, id := range s.keys {
		out.keys[k] = id
	}
	return out
}

// Store keeps records in process memory. Writers are serialized; a
// transaction works on a copy that replaces the state only on success.
type Store struct {
	mu    sync.RWMutex
	state memoryState
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{view: view{state: s.state.clone()}}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(&view{state: snapshot})
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

type view struct {
	state memoryState
}

func (v *view) ListPrograms() ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range v.state.records {
		if _, ok := seen[r.Program]; ok {
			continue
		}
		seen[r.Program] = struct{}{}
		out = append(out, r.Program)
	}
	sort.Strings(out)
	return out, nil
}

func (v *view) ListBatches(program string) ([]int64, error) {
	seen := make(map[int64]struct{})
	out := make([]int64, 0)
	for _, r := range v.state.records {
		if r.Program != program {
			continue
		}
		if _, ok := seen[r.Batch]; ok {
			continue
		}
		seen[r.Batch] = struct{}{}
		out = append(out, r.Batch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (v *view) ListRecords(program string, batch int64) ([]domain.Record, error) {
	out := make([]domain.Record, 0)
	for _, r := range v.state.records {
		if r.Program == program && r.Batch == batch {
			out = append(out, domain.CloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.RecordOrder(out[i], out[j]) })
	return out, nil
}

func (v *view) FindRecord(id int64) (domain.Record, bool, error) {
	r, ok := v.state.records[id]
	if !ok {
		return domain.Record{}, false, nil
	}
	return domain.CloneRecord(r), true, nil
}

func (v *view) FindRecordByKey(key domain.NaturalKey) (domain.Record, bool, error) {
	id, ok := v.state.keys[key]
	if !ok {
		return domain.Record{}, false, nil
	}
	return v.FindRecord(id)
}

type transaction struct {
	view
}

func (tx *transaction) UpdateRecord(id int64, mutator func(*domain.Record) error) (domain.Record, error) {
	current, ok := tx.state.records[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound{ID: id}
	}
	updated := domain.CloneRecord(current)
	if mutator != nil {
		if err := mutator(&updated); err != nil {
			return domain.Record{}, err
		}
	}
	current.Mean = updated.Mean
	current.StandardDeviation = updated.StandardDeviation
	tx.state.records[id] = current
	return domain.CloneRecord(current), nil
}

func (tx *transaction) CreateRecordIfAbsent(key domain.NaturalKey) (domain.Record, bool, error) {
	if id, ok := tx.state.keys[key]; ok {
		return domain.CloneRecord(tx.state.records[id]), false, nil
	}
	id := tx.state.nextID
	tx.state.nextID++
	rec := domain.Record{ID: id, Program: key.Program, Batch: key.Batch, Analyte: key.Analyte, Unit: key.Unit}
	tx.state.records[id] = rec
	tx.state.keys[key] = id
	return domain.CloneRecord(rec), true, nil
}
