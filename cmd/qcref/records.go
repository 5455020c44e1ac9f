package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qcref/pkg/domain"
)

func newSeedCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Import records from a spreadsheet (xlsx, xlsm or csv)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("token") {
				token = a.cfg.Seed.Token
			}
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			name := filepath.Base(args[0])
			processed, err := svc.SeedFromSpreadsheet(cmd.Context(), domain.Upload{
				Filename:    name,
				ContentType: mime.TypeByExtension(filepath.Ext(name)),
				Data:        data,
			}, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed: %d\n", processed)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "seed token (defaults to the configured token)")
	return cmd
}

func newProgramsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "programs",
		Short: "List programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			programs, err := svc.ListPrograms(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range programs {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newBatchesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batches <program>",
		Short: "List the batches of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			batches, err := svc.ListBatches(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, b := range batches {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}

func newRecordsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "records <program> <batch>",
		Short: "Show the records of a program batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("batch must be an integer: %w", err)
			}
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			records, err := svc.ListRecords(cmd.Context(), args[0], batch)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No records found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tANALYTE\tUNIT\tMEAN\tSD")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Analyte, r.Unit, formatOptional(r.Mean), formatOptional(r.StandardDeviation))
			}
			return w.Flush()
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		mean, sd           float64
		clearMean, clearSD bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Set or clear the mean and standard deviation of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("id must be an integer: %w", err)
			}
			edit := domain.EditRequest{ID: id}
			switch {
			case clearMean:
				edit.Mean = domain.Null()
			case cmd.Flags().Changed("mean"):
				edit.Mean = domain.Float(mean)
			}
			switch {
			case clearSD:
				edit.StandardDeviation = domain.Null()
			case cmd.Flags().Changed("sd"):
				edit.StandardDeviation = domain.Float(sd)
			}
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			updated, err := svc.ApplyChanges(cmd.Context(), []domain.EditRequest{edit})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated: %d\n", updated)
			return nil
		},
	}
	cmd.Flags().Float64Var(&mean, "mean", 0, "new mean")
	cmd.Flags().BoolVar(&clearMean, "clear-mean", false, "clear the mean")
	cmd.Flags().Float64Var(&sd, "sd", 0, "new standard deviation")
	cmd.Flags().BoolVar(&clearSD, "clear-sd", false, "clear the standard deviation")
	cmd.MarkFlagsMutuallyExclusive("mean", "clear-mean")
	cmd.MarkFlagsMutuallyExclusive("sd", "clear-sd")
	return cmd
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
