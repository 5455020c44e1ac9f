package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qcref/internal/blob"
	"qcref/internal/config"
	"qcref/internal/core"
	"qcref/internal/logging"
)

type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "qcref",
		Short: "Quality-control reference values",
		Long: `qcref manages the mean and standard deviation of laboratory analytes,
organised by program and batch.

Run "qcref serve" to start the web editor, or use the subcommands to query,
edit and seed records from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging, a.verbose)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "qcref.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newSeedCmd(a),
		newProgramsCmd(a),
		newBatchesCmd(a),
		newRecordsCmd(a),
		newUpdateCmd(a),
	)
	return root
}

// openService opens the configured store and archive. The returned closer
// releases the store.
func (a *app) openService(ctx context.Context, extra ...core.ServiceOption) (*core.Service, func(), error) {
	store, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(a.cfg.Storage.Driver),
		SQLitePath:  a.cfg.Storage.SQLitePath,
		PostgresDSN: a.cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	archive, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(a.cfg.Blob.Driver),
		FSRoot: a.cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          a.cfg.Blob.S3.Bucket,
			Region:          a.cfg.Blob.S3.Region,
			Endpoint:        a.cfg.Blob.S3.Endpoint,
			AccessKeyID:     a.cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: a.cfg.Blob.S3.SecretAccessKey,
			PathStyle:       a.cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open upload archive: %w", err)
	}
	opts := []core.ServiceOption{
		core.WithSeedToken(a.cfg.Seed.Token),
		core.WithLogger(logging.ForService(a.logger)),
	}
	if archive != nil {
		opts = append(opts, core.WithUploadArchive(archive))
	}
	svc := core.NewService(store, append(opts, extra...)...)
	closer := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	return svc, closer, nil
}
