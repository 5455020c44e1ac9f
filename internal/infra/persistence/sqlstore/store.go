// Package sqlstore implements the record store on top of database/sql. The
// sqlite and postgres packages supply the driver and a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"qcref/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Schema is applied statement by statement on open; every statement must be idempotent.
	Schema []string
	// NumberedPlaceholders rewrites `?` into `$1, $2, ...`.
	NumberedPlaceholders bool
}

// Rebind converts a query written with `?` placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store persists records in the qc_records table.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New applies the dialect schema and returns a store over db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the configured dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// RunInTransaction runs fn inside a database transaction, committing when fn
// succeeds and rolling back on error or panic.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (retErr error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if retErr != nil {
			_ = sqlTx.Rollback()
		}
	}()
	if err := fn(&transaction{queries: queries{ctx: ctx, q: sqlTx, dialect: s.dialect}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn inside a read-only transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.dialect.Name != "sqlite"})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&queries{ctx: ctx, q: sqlTx, dialect: s.dialect})
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	ctx     context.Context
	q       querier
	dialect Dialect
}

const recordColumns = `id, program, batch, analyte, unit, mean, standard_deviation`

func (q *queries) ListPrograms() ([]string, error) {
	rows, err := q.q.QueryContext(q.ctx, q.dialect.Rebind(
		`SELECT DISTINCT program FROM qc_records WHERE program IS NOT NULL ORDER BY program`))
	if err != nil {
		return nil, fmt.Errorf("select programs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]string, 0)
	for rows.Next() {
		var program string
		if err := rows.Scan(&program); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		out = append(out, program)
	}
	return out, rows.Err()
}

func (q *queries) ListBatches(program string) ([]int64, error) {
	rows, err := q.q.QueryContext(q.ctx, q.dialect.Rebind(
		`SELECT DISTINCT batch FROM qc_records WHERE program = ? ORDER BY batch`), program)
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]int64, 0)
	for rows.Next() {
		var batch int64
		if err := rows.Scan(&batch); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

func (q *queries) ListRecords(program string, batch int64) ([]domain.Record, error) {
	rows, err := q.q.QueryContext(q.ctx, q.dialect.Rebind(
		`SELECT `+recordColumns+` FROM qc_records WHERE program = ? AND batch = ? ORDER BY analyte, unit`),
		program, batch)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (q *queries) FindRecord(id int64) (domain.Record, bool, error) {
	row := q.q.QueryRowContext(q.ctx, q.dialect.Rebind(
		`SELECT `+recordColumns+` FROM qc_records WHERE id = ?`), id)
	return scanOptional(row)
}

func (q *queries) FindRecordByKey(key domain.NaturalKey) (domain.Record, bool, error) {
	row := q.q.QueryRowContext(q.ctx, q.dialect.Rebind(
		`SELECT `+recordColumns+` FROM qc_records WHERE program = ? AND batch = ? AND analyte = ? AND unit = ?`),
		key.Program, key.Batch, key.Analyte, key.Unit)
	return scanOptional(row)
}

type transaction struct {
	queries
}

func (tx *transaction) UpdateRecord(id int64, mutator func(*domain.Record) error) (domain.Record, error) {
	current, ok, err := tx.FindRecord(id)
	if err != nil {
		return domain.Record{}, err
	}
	if !ok {
		return domain.Record{}, domain.ErrNotFound{ID: id}
	}
	updated := domain.CloneRecord(current)
	if mutator != nil {
		if err := mutator(&updated); err != nil {
			return domain.Record{}, err
		}
	}
	if _, err := tx.q.ExecContext(tx.ctx, tx.dialect.Rebind(
		`UPDATE qc_records SET mean = ?, standard_deviation = ? WHERE id = ?`),
		nullFloat(updated.Mean), nullFloat(updated.StandardDeviation), id); err != nil {
		return domain.Record{}, fmt.Errorf("update record %d: %w", id, err)
	}
	current.Mean = updated.Mean
	current.StandardDeviation = updated.StandardDeviation
	return current, nil
}

func (tx *transaction) CreateRecordIfAbsent(key domain.NaturalKey) (domain.Record, bool, error) {
	var id int64
	err := tx.q.QueryRowContext(tx.ctx, tx.dialect.Rebind(
		`INSERT INTO qc_records (program, batch, analyte, unit, mean, standard_deviation)
		VALUES (?, ?, ?, ?, NULL, NULL)
		ON CONFLICT (program, batch, analyte, unit) DO NOTHING
		RETURNING id`),
		key.Program, key.Batch, key.Analyte, key.Unit).Scan(&id)
	switch {
	case err == nil:
		return domain.Record{ID: id, Program: key.Program, Batch: key.Batch, Analyte: key.Analyte, Unit: key.Unit}, true, nil
	case errors.Is(err, sql.ErrNoRows):
		// key already present
	default:
		return domain.Record{}, false, fmt.Errorf("insert record %s: %w", key, err)
	}
	existing, ok, err := tx.FindRecordByKey(key)
	if err != nil {
		return domain.Record{}, false, err
	}
	if !ok {
		return domain.Record{}, false, fmt.Errorf("record %s vanished after conflict", key)
	}
	return existing, false, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.Record, error) {
	var (
		rec      domain.Record
		mean, sd sql.NullFloat64
	)
	if err := s.Scan(&rec.ID, &rec.Program, &rec.Batch, &rec.Analyte, &rec.Unit, &mean, &sd); err != nil {
		return domain.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Mean = floatPtr(mean)
	rec.StandardDeviation = floatPtr(sd)
	return rec, nil
}

func scanOptional(row *sql.Row) (domain.Record, bool, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, false, nil
		}
		return domain.Record{}, false, err
	}
	return rec, true, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
