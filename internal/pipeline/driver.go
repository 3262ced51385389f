// Package pipeline runs one hiring search job end to end: query generation,
// search, screening, enrichment, structuring and indexing, evaluation and the
// final merge, recording progress in the job store before every stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/background"
	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/engagement"
	"github.com/jonathan/talent-pipeline/internal/enrichment"
	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/querying"
	"github.com/jonathan/talent-pipeline/internal/scoring"
	"github.com/jonathan/talent-pipeline/internal/screening"
	"github.com/jonathan/talent-pipeline/internal/search"
	"github.com/jonathan/talent-pipeline/internal/structuring"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Status messages for runs that end early without failing.
const (
	MessageNoProfiles         = "no profiles found: search returned no extractable profile links"
	MessageNoEnrichedProfiles = "links found but enrichment returned no profiles"
)

// Dependencies are the collaborators a Driver needs. Search, Enricher, LLM
// and Store are required; Source and Embedder are optional.
type Dependencies struct {
	LLM         llm.Client
	Search      search.Searcher
	Enricher    enrichment.Enricher
	Source      background.Source
	Embedder    llm.Embedder
	Store       db.Store
	Credentials config.Credentials
	Logger      *zap.Logger
	// RetryPolicy defaults to llm.DefaultRetryPolicy when nil.
	RetryPolicy *llm.RetryPolicy
	// Limits are the per-job defaults for options the caller leaves at zero.
	Limits types.JobOptions
	// OnProgress is called after every successful progress write.
	OnProgress ProgressCallback
}

// Driver runs pipeline jobs. It is safe for concurrent use; each Run owns
// its own tracker and intermediate state.
type Driver struct {
	deps       Dependencies
	logger     *zap.Logger
	generator  *querying.Generator
	screener   *screening.Screener
	structurer *structuring.Structurer
	scorer     *scoring.Scorer
	verifier   *background.Verifier
	engager    *engagement.Engager
	indexer    *Indexer
}

// NewDriver wires the stages from deps.
func NewDriver(deps Dependencies) *Driver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := llm.DefaultRetryPolicy()
	if deps.RetryPolicy != nil {
		policy = *deps.RetryPolicy
	}
	if deps.Limits.MaxQueries == 0 {
		deps.Limits.MaxQueries = config.DefaultMaxQueries
	}
	if deps.Limits.ResultsPerQuery == 0 {
		deps.Limits.ResultsPerQuery = config.DefaultResultsPerQuery
	}
	if deps.Limits.MaxProfiles == 0 {
		deps.Limits.MaxProfiles = config.DefaultMaxProfiles
	}

	return &Driver{
		deps:       deps,
		logger:     logger,
		generator:  querying.NewGenerator(deps.LLM, policy, logger.Named("querying")),
		screener:   screening.NewScreener(deps.LLM, policy, logger.Named("screening")),
		structurer: structuring.NewStructurer(deps.LLM, policy, logger.Named("structuring")),
		scorer:     scoring.NewScorer(deps.LLM, policy, logger.Named("scoring")),
		verifier:   background.NewVerifier(deps.LLM, deps.Source, policy, logger.Named("background")),
		engager:    engagement.NewEngager(deps.LLM, policy, logger.Named("engagement")),
		indexer: &Indexer{
			store:    deps.Store,
			embedder: deps.Embedder,
			source:   enrichment.Source,
			logger:   logger.Named("indexing"),
		},
	}
}

// missing names required collaborators that were not supplied.
func (d *Driver) missing() []string {
	var names []string
	if d.deps.LLM == nil {
		names = append(names, "generation client")
	}
	if d.deps.Search == nil {
		names = append(names, "search client")
	}
	if d.deps.Enricher == nil {
		names = append(names, "enrichment client")
	}
	return names
}

// Run executes job and leaves it in a terminal state. The returned error is
// the cause of a FAILED job, or a progress write failure; nil means COMPLETED.
func (d *Driver) Run(ctx context.Context, job *types.Job) error {
	logger := d.logger.With(zap.String("job_id", job.ID))
	tracker := NewTracker(d.deps.Store, job.ID, d.deps.OnProgress, logger)
	opts := d.options(job.Options)
	results := &types.JobResults{FinalCandidates: []types.Candidate{}}

	if err := d.deps.Credentials.Validate(); err != nil {
		return d.fail(ctx, tracker, logger, err, nil)
	}
	if names := d.missing(); len(names) > 0 {
		return d.fail(ctx, tracker, logger,
			fmt.Errorf("pipeline is missing collaborators: %s", strings.Join(names, ", ")), nil)
	}

	logger.Info("pipeline started", zap.String("requirement", job.Requirement))

	// GENERATING_QUERIES
	if err := tracker.Enter(ctx, StageGeneratingQueries, "", nil); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	queries, err := d.generator.Generate(ctx, job.Requirement, opts.MaxQueries)
	if err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	results.Queries = queries

	// SEARCHING
	if err := tracker.Enter(ctx, StageSearching, fmt.Sprintf("Running %d search queries", len(queries)), results); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	raw, err := search.RunBatch(ctx, d.deps.Search, queries, opts.ResultsPerQuery, logger.Named("search"))
	if err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	results.Stats.RawResults = len(raw)

	// SCREENING
	if err := tracker.Enter(ctx, StageScreening, fmt.Sprintf("Screening %d search results", len(raw)), results); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	screened, err := d.screener.Screen(ctx, job.Requirement, raw)
	if err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	results.ScreenedCandidates = screened.Filtered
	results.Summary = screened.Summary
	results.Stats.Screened = len(screened.Filtered)

	links := enrichment.ExtractProfileLinks(screened.Filtered)
	if len(links) > opts.MaxProfiles {
		links = links[:opts.MaxProfiles]
	}
	results.Stats.Links = len(links)
	if len(links) == 0 {
		return d.complete(ctx, tracker, logger, MessageNoProfiles, results)
	}

	// ENRICHING
	if err := tracker.Enter(ctx, StageEnriching, fmt.Sprintf("Fetching %d profiles", len(links)), results); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	profiles, err := d.deps.Enricher.Enrich(ctx, links)
	if err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	results.Stats.Enriched = len(profiles)
	if len(profiles) == 0 {
		return d.complete(ctx, tracker, logger, MessageNoEnrichedProfiles, results)
	}

	// STRUCTURING_AND_INDEXING
	if err := tracker.Enter(ctx, StageStructuringAndIndexing, fmt.Sprintf("Structuring %d profiles", len(profiles)), results); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	structured, err := d.structurer.Structure(ctx, profiles)
	if err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	results.Stats.Structured = len(structured)
	candidates, ids, indexStats := d.indexer.index(ctx, structured)
	results.Stats.New = indexStats.New
	results.Stats.Updated = indexStats.Updated
	results.Stats.IndexFailed = indexStats.Failed

	// EVALUATING
	if err := tracker.Enter(ctx, StageEvaluating, fmt.Sprintf("Evaluating %d candidates", len(candidates)), results); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	scored := d.scorer.Run(ctx, job.Requirement, candidates)
	checked := d.verifier.Run(ctx, job.Requirement, candidates)
	engaged := d.engager.Run(ctx, job.Requirement, candidates)
	if err := ctx.Err(); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}

	// FINALIZING
	if err := tracker.Enter(ctx, StageFinalizing, "", results); err != nil {
		return d.fail(ctx, tracker, logger, err, results)
	}
	merged, mergeStats := Merge(candidates, scored, checked, engaged)
	if mergeStats.Dropped > 0 {
		logger.Warn("candidates dropped: no stage produced output for them",
			zap.Int("dropped", mergeStats.Dropped))
	}
	results.Stats.Dropped = mergeStats.Dropped
	results.Stats.Fallbacks = mergeStats.Fallbacks
	results.Stats.IndexFailed += d.indexer.persist(ctx, merged, ids)
	results.FinalCandidates = merged

	return d.complete(ctx, tracker, logger, completionMessage(results.Stats, len(merged)), results)
}

func (d *Driver) options(o types.JobOptions) types.JobOptions {
	if o.MaxQueries <= 0 {
		o.MaxQueries = d.deps.Limits.MaxQueries
	}
	if o.ResultsPerQuery <= 0 {
		o.ResultsPerQuery = d.deps.Limits.ResultsPerQuery
	}
	if o.MaxProfiles <= 0 {
		o.MaxProfiles = d.deps.Limits.MaxProfiles
	}
	return o
}

func (d *Driver) complete(ctx context.Context, tracker *Tracker, logger *zap.Logger, message string, results *types.JobResults) error {
	if err := tracker.Complete(ctx, message, results); err != nil {
		logger.Error("failed to record job completion", zap.Error(err))
		return err
	}
	logger.Info("pipeline completed",
		zap.Int("final_candidates", len(results.FinalCandidates)),
		zap.String("message", message))
	return nil
}

// fail records cause on the job. The terminal write is detached from ctx so a
// cancelled run still reaches FAILED.
func (d *Driver) fail(ctx context.Context, tracker *Tracker, logger *zap.Logger, cause error, results *types.JobResults) error {
	logger.Error("pipeline failed", zap.String("stage", string(tracker.Stage())), zap.Error(cause))
	if err := tracker.Fail(context.WithoutCancel(ctx), cause, results); err != nil && !errors.Is(err, db.ErrJobNotWritable) {
		logger.Error("failed to record job failure", zap.Error(err))
	}
	return cause
}

func completionMessage(stats types.JobStats, final int) string {
	msg := fmt.Sprintf("Completed: %d candidates (%d new, %d updated)", final, stats.New, stats.Updated)
	if stats.IndexFailed > 0 {
		msg += fmt.Sprintf(", %d failed to save", stats.IndexFailed)
	}
	if stats.Dropped > 0 {
		msg += fmt.Sprintf(", %d dropped", stats.Dropped)
	}
	return msg
}
