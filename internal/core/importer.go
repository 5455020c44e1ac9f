package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"qcref/internal/blob"
	"qcref/internal/spreadsheet"
	"qcref/pkg/domain"
)

// Column names the import requires in the header row.
const (
	ColumnProgram = "Program"
	ColumnBatch   = "Batch"
	ColumnAnalyte = "Analyte"
	ColumnUnit    = "Unit"
)

// UploadPrefix is the blob key prefix for archived uploads.
const UploadPrefix = "seed-uploads/"

var requiredColumns = []string{ColumnProgram, ColumnBatch, ColumnAnalyte, ColumnUnit}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SeedFromSpreadsheet authorizes, parses and imports an uploaded sheet and
// returns the number of rows processed. Nothing is written unless every row
// is valid.
func (s *Service) SeedFromSpreadsheet(ctx context.Context, upload domain.Upload, token string) (processed int, err error) {
	defer func(start time.Time) { s.observe(ctx, "seed_spreadsheet", start, err) }(s.clock.Now())
	if err := s.authorize(token); err != nil {
		s.logger.Warn("seed rejected", "filename", upload.Filename)
		return 0, err
	}
	table, err := spreadsheet.Parse(upload.Filename, upload.Data)
	if err != nil {
		return 0, domain.BadInputError{Reason: "unreadable spreadsheet: " + err.Error()}
	}
	processed, err = s.ImportTable(ctx, table)
	if err != nil {
		return 0, err
	}
	s.logger.Info("spreadsheet imported", "filename", upload.Filename, "processed", processed)
	s.archiveUpload(ctx, upload, processed)
	return processed, nil
}

// ImportTable creates a record for every natural key in table that does not
// already exist. Existing records are left untouched.
func (s *Service) ImportTable(ctx context.Context, table spreadsheet.Table) (int, error) {
	keys, err := rowKeys(table)
	if err != nil {
		return 0, err
	}
	var inserted int
	err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		inserted = 0
		for _, key := range keys {
			_, created, err := tx.CreateRecordIfAbsent(key)
			if err != nil {
				return fmt.Errorf("create %s: %w", key, err)
			}
			if created {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("import committed", "rows", len(keys), "inserted", inserted)
	return len(keys), nil
}

func rowKeys(table spreadsheet.Table) ([]domain.NaturalKey, error) {
	if missing := table.Missing(requiredColumns...); len(missing) > 0 {
		return nil, domain.BadInputError{Columns: missing}
	}
	var (
		program = table.Index(ColumnProgram)
		batch   = table.Index(ColumnBatch)
		analyte = table.Index(ColumnAnalyte)
		unit    = table.Index(ColumnUnit)
	)
	keys := make([]domain.NaturalKey, 0, len(table.Rows))
	for i, row := range table.Rows {
		if spreadsheet.Blank(row) {
			continue
		}
		// header is sheet row 1
		sheetRow := i + 2
		b, err := parseBatch(row[batch])
		if err != nil {
			return nil, domain.BadInputError{Columns: []string{ColumnBatch}, Row: sheetRow, Reason: err.Error()}
		}
		keys = append(keys, domain.NaturalKey{
			Program: row[program],
			Batch:   b,
			Analyte: row[analyte],
			Unit:    row[unit],
		})
	}
	return keys, nil
}

// parseBatch accepts integers and truncates decimal values toward zero.
func parseBatch(raw string) (int64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, errors.New("empty value")
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("not an integer %q", v)
	}
	return int64(math.Trunc(f)), nil
}

func (s *Service) archiveUpload(ctx context.Context, upload domain.Upload, processed int) {
	if s.archive == nil {
		return
	}
	key := archiveKey(s.clock.Now(), upload.Filename)
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.archive.Put(ctx, key, bytes.NewReader(upload.Data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"processed": strconv.Itoa(processed)},
	})
	if err != nil {
		s.logger.Warn("archive upload failed", "key", key, "error", err)
		return
	}
	s.logger.Debug("upload archived", "key", info.Key, "size", info.Size)
}

func archiveKey(now time.Time, filename string) string {
	name := unsafeFilename.ReplaceAllString(path.Base(strings.ReplaceAll(filename, "\\", "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	return UploadPrefix + now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString() + "-" + name
}

// ListUploads returns the archived uploads, oldest first. It is guarded by the
// seed token and returns an empty list when no archive is configured.
func (s *Service) ListUploads(ctx context.Context, token string) (uploads []blob.Info, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_uploads", start, err) }(s.clock.Now())
	if err := s.authorize(token); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return []blob.Info{}, nil
	}
	uploads, err = s.archive.List(ctx, UploadPrefix)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}
