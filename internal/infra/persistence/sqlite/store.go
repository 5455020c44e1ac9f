// Package sqlite provides the embedded SQLite record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"qcref/internal/infra/persistence/sqlstore"
	"qcref/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultPath   = "qcref.db"
	busyTimeoutMS = 5000
)

// Dialect is the SQLite flavour of the qc_records schema.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS qc_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			program VARCHAR(100) NOT NULL,
			batch INTEGER NOT NULL,
			analyte VARCHAR(150) NOT NULL,
			unit VARCHAR(50) NOT NULL,
			mean REAL NULL,
			standard_deviation REAL NULL,
			CONSTRAINT uq_qc_records_key UNIQUE (program, batch, analyte, unit)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_qc_records_program ON qc_records (program)`,
		`CREATE INDEX IF NOT EXISTS idx_qc_records_program_batch ON qc_records (program, batch)`,
		`CREATE INDEX IF NOT EXISTS idx_qc_records_analyte ON qc_records (analyte)`,
	},
}

// Store is a SQLite-backed record store.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the SQLite database at path. The special
// path ":memory:" opens a private in-memory database.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	inner, err := sqlstore.New(context.Background(), db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "foreign_keys(1)")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}
