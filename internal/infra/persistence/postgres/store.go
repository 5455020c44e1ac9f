// Package postgres provides a Postgres-backed record store that applies the
// qc_records DDL on startup.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"qcref/internal/infra/persistence/sqlstore"
	"qcref/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with the configuration defaults.
	defaultDSN = "postgres://localhost/qcref?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect is the Postgres flavour of the qc_records schema.
var Dialect = sqlstore.Dialect{
	Name:                 "postgres",
	NumberedPlaceholders: true,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS qc_records (
			id BIGSERIAL PRIMARY KEY,
			program VARCHAR(100) NOT NULL,
			batch BIGINT NOT NULL,
			analyte VARCHAR(150) NOT NULL,
			unit VARCHAR(50) NOT NULL,
			mean DOUBLE PRECISION NULL,
			standard_deviation DOUBLE PRECISION NULL,
			CONSTRAINT uq_qc_records_key UNIQUE (program, batch, analyte, unit)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_qc_records_program ON qc_records (program)`,
		`CREATE INDEX IF NOT EXISTS idx_qc_records_program_batch ON qc_records (program, batch)`,
		`CREATE INDEX IF NOT EXISTS idx_qc_records_analyte ON qc_records (analyte)`,
	},
}

// Store persists records to Postgres.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	inner, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
