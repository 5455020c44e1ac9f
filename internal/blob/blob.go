// Package blob re-exports core blob abstractions and selects a backend.
package blob

import (
	"context"
	"fmt"

	"qcref/internal/blob/core"
	infraFS "qcref/internal/infra/blob/fs"
	infraMemory "qcref/internal/infra/blob/memory"
	infraS3 "qcref/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 backend.
	S3Config = infraS3.Config
)

const (
	DriverNone       = core.DriverNone
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Options selects and configures a blob backend.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the configured store, or nil when archiving is disabled.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverFilesystem:
		store, err := infraFS.New(opts.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return infraMemory.New(), nil
	case DriverS3:
		store, err := infraS3.New(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}
