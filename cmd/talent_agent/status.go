package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/observability"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the stored state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd.Context())
		store, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
		return printStatus(ctx, store, cmd.OutOrStdout(), args[0], statusJSON)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the job record as JSON")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(ctx context.Context, store db.JobStore, out io.Writer, id string, asJSON bool) error {
	job, err := store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	printer := observability.NewPrinter(out)
	printer.PrintJob(job)
	if job.Status.IsTerminal() {
		printer.PrintResults(job.Results)
	}
	return nil
}
