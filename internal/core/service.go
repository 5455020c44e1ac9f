// Package core hosts the reference-value service: filtered lookups, batched
// edits and the spreadsheet import, each run inside one store transaction.
package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"qcref/internal/blob"
	"qcref/pkg/domain"
)

// Service exposes the query, update and import operations over a PersistentStore.
type Service struct {
	store     PersistentStore
	archive   blob.Store
	seedToken string
	logger    Logger
	metrics   MetricsRecorder
	clock     Clock
}

type serviceOptions struct {
	archive   blob.Store
	seedToken string
	logger    Logger
	metrics   MetricsRecorder
	clock     Clock
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
}

// WithSeedToken sets the shared token required by the import. Empty disables the check.
func WithSeedToken(token string) ServiceOption {
	return func(o *serviceOptions) { o.seedToken = token }
}

// WithUploadArchive stores every committed upload in the given blob store.
func WithUploadArchive(store blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.archive = store }
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder overrides the default no-op recorder.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:     store,
		archive:   o.archive,
		seedToken: o.seedToken,
		logger:    o.logger,
		metrics:   o.metrics,
		clock:     o.clock,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.Observe(ctx, operation, err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.logger.Debug("operation failed", "operation", operation, "error", err)
	}
}

// Health round-trips to the store.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// ListPrograms returns every distinct program, ascending.
func (s *Service) ListPrograms(ctx context.Context) (programs []string, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_programs", start, err) }(s.clock.Now())
	err = s.store.View(ctx, func(v TransactionView) error {
		var err error
		programs, err = v.ListPrograms()
		return err
	})
	return programs, err
}

// ListBatches returns the batches recorded for program, ascending. Unknown
// programs yield an empty slice.
func (s *Service) ListBatches(ctx context.Context, program string) (batches []int64, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_batches", start, err) }(s.clock.Now())
	err = s.store.View(ctx, func(v TransactionView) error {
		var err error
		batches, err = v.ListBatches(program)
		return err
	})
	return batches, err
}

// ListRecords returns the records matching program and batch ordered by analyte then unit.
func (s *Service) ListRecords(ctx context.Context, program string, batch int64) (records []domain.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_records", start, err) }(s.clock.Now())
	err = s.store.View(ctx, func(v TransactionView) error {
		var err error
		records, err = v.ListRecords(program, batch)
		return err
	})
	return records, err
}

// ApplyChanges writes every edit in one transaction. Unknown ids are skipped;
// the result counts the ids that resolved to a record.
func (s *Service) ApplyChanges(ctx context.Context, changes []domain.EditRequest) (updated int, err error) {
	defer func(start time.Time) { s.observe(ctx, "apply_changes", start, err) }(s.clock.Now())
	err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		updated = 0
		for _, change := range changes {
			_, err := tx.UpdateRecord(change.ID, func(r *domain.Record) error {
				change.Apply(r)
				return nil
			})
			var nf domain.ErrNotFound
			if errors.As(err, &nf) {
				s.logger.Debug("edit skipped", "id", change.ID)
				continue
			}
			if err != nil {
				return fmt.Errorf("update record %d: %w", change.ID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("changes applied", "requested", len(changes), "updated", updated)
	return updated, nil
}

func (s *Service) authorize(token string) error {
	if s.seedToken == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.seedToken)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
