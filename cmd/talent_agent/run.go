package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/observability"
	"github.com/jonathan/talent-pipeline/internal/pipeline"
	"github.com/jonathan/talent-pipeline/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run [requirement]",
	Short: "Run one job synchronously and print the results",
	Long: `Runs the full pipeline in the foreground: query generation -> search -> screening ->
enrichment -> structuring and indexing -> evaluation -> finalizing.

The requirement is taken from --requirement or from the positional arguments.`,
	RunE: runPipelineCmd,
}

var (
	runRequirement     string
	runJobID           string
	runMaxQueries      int
	runResultsPerQuery int
	runMaxProfiles     int
	runJSON            bool
)

func init() {
	runCommand.Flags().StringVarP(&runRequirement, "requirement", "r", "", "Hiring requirement in natural language")
	runCommand.Flags().StringVar(&runJobID, "job-id", "", "Job id (defaults to a new UUID)")
	runCommand.Flags().IntVar(&runMaxQueries, "max-queries", 0, "Maximum search queries (0 uses the configured default)")
	runCommand.Flags().IntVar(&runResultsPerQuery, "results-per-query", 0, "Search results per query (0 uses the configured default)")
	runCommand.Flags().IntVar(&runMaxProfiles, "max-profiles", 0, "Maximum profiles to enrich (0 uses the configured default)")
	runCommand.Flags().BoolVar(&runJSON, "json", false, "Print the final job record as JSON instead of tables")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd.Context())

	requirement := strings.TrimSpace(runRequirement)
	if requirement == "" {
		requirement = strings.TrimSpace(strings.Join(args, " "))
	}
	if requirement == "" {
		return errors.New("a requirement is required (use --requirement or pass it as arguments)")
	}

	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	deps, closeDeps, err := buildDependencies(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	out := cmd.OutOrStdout()
	job, err := runJob(ctx, store, deps, out, &types.Job{
		ID:          runJobID,
		Requirement: requirement,
		Options: types.JobOptions{
			MaxQueries:      runMaxQueries,
			ResultsPerQuery: runResultsPerQuery,
			MaxProfiles:     runMaxProfiles,
		},
	}, runJSON)
	if err != nil {
		return err
	}
	if job.Status == types.JobFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

// runJob records job as pending, drives it to a terminal state and prints
// the outcome. Progress lines are printed as stages start unless asJSON is set.
func runJob(ctx context.Context, store db.Store, deps pipeline.Dependencies, out io.Writer, job *types.Job, asJSON bool) (*types.Job, error) {
	printer := observability.NewPrinter(out)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = types.JobPending
	job.Stage = string(pipeline.StagePending)
	job.StatusMessage = "Job queued"

	if err := store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if !asJSON {
		deps.OnProgress = func(e pipeline.ProgressEvent) {
			printer.PrintStep(e.Progress, string(e.Stage), e.Message)
		}
	}
	// The job's own failure is read back from the store below.
	runErr := pipeline.NewDriver(deps).Run(ctx, job)

	final, err := store.GetJob(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", job.ID, err)
	}
	if final == nil {
		return nil, fmt.Errorf("job %s disappeared from the store", job.ID)
	}
	if !final.Status.IsTerminal() && runErr != nil {
		return nil, fmt.Errorf("job %s did not finish: %w", job.ID, runErr)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(final); err != nil {
			return nil, fmt.Errorf("failed to encode job: %w", err)
		}
		return final, nil
	}

	printer.PrintJob(final)
	printer.PrintResults(final.Results)
	return final, nil
}
