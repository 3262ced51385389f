package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/background"
	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/enrichment"
	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/pipeline"
	"github.com/jonathan/talent-pipeline/internal/search"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// verificationTimeout bounds one profile page fetch during verification.
const verificationTimeout = 20 * time.Second

// buildDependencies creates the external clients whose credentials are set.
// Clients with missing credentials stay nil; the driver then fails each job
// with a configuration error instead of the process refusing to start.
func buildDependencies(ctx context.Context, cfg *config.Config, store db.Store, logger *zap.Logger) (pipeline.Dependencies, func(), error) {
	creds := cfg.Credentials
	deps := pipeline.Dependencies{
		Store:       store,
		Credentials: creds,
		Logger:      logger.Named("pipeline"),
		Limits: types.JobOptions{
			MaxQueries:      cfg.MaxQueries,
			ResultsPerQuery: cfg.ResultsPerQuery,
			MaxProfiles:     cfg.MaxProfiles,
		},
		Source: background.NewGitHubSource(
			&http.Client{Timeout: verificationTimeout},
			cfg.VerifyUseBrowser,
			logger.Named("github"),
		),
	}
	cleanup := func() {}

	if err := creds.Validate(); err != nil {
		logger.Warn("credentials incomplete; jobs will fail until configured", zap.Error(err))
	}

	if creds.GeminiAPIKey != "" {
		client, err := llm.NewClient(ctx, generationConfig(cfg), creds.GeminiAPIKey)
		if err != nil {
			return pipeline.Dependencies{}, cleanup, fmt.Errorf("failed to create generation client: %w", err)
		}
		deps.LLM = client
		deps.Embedder = client
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close generation client", zap.Error(err))
			}
		}
	}

	if creds.SearchAPIKey != "" && creds.SearchCX != "" {
		searcher, err := search.NewGoogleSearcher(ctx, creds.SearchAPIKey, creds.SearchCX)
		if err != nil {
			cleanup()
			return pipeline.Dependencies{}, func() {}, err
		}
		deps.Search = searcher
	}

	if creds.EnrichmentURL != "" {
		deps.Enricher = enrichment.NewClient(enrichment.Config{
			URL:     creds.EnrichmentURL,
			Token:   creds.EnrichmentToken,
			Timeout: time.Duration(cfg.EnrichmentTimeout),
		}, logger.Named("enrichment"))
	}

	return deps, cleanup, nil
}

// commandContext returns ctx, or a background context when cobra has none.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// generationConfig applies the configured per-tier model overrides.
func generationConfig(cfg *config.Config) *llm.Config {
	out := llm.DefaultConfig()
	for tier, model := range cfg.Models {
		out = out.WithModel(llm.ModelTier(tier), model)
	}
	return out
}
