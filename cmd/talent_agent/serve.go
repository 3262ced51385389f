package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/jobs"
	"github.com/jonathan/talent-pipeline/internal/pipeline"
	"github.com/jonathan/talent-pipeline/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job API server and worker pool",
	Long: `Start an HTTP server that accepts hiring requirements on POST /jobs, runs each
job on a background worker and exposes progress on GET /jobs/{id}.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to ADDR or :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
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

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}
	if jwtConfig == nil {
		logger.Warn("JWT_SECRET not set; API is unauthenticated")
	}

	queue := jobs.NewQueue(store, pipeline.NewDriver(deps), jobs.Options{
		Workers: cfg.Workers,
		Size:    cfg.QueueSize,
	}, logger.Named("jobs"))
	queue.Start(ctx)
	defer queue.Stop()

	srv, err := server.New(server.Config{
		Addr:       addr,
		Queue:      queue,
		Candidates: store,
		Logger:     logger.Named("http"),
		JWT:        jwtConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("serving",
		zap.String("addr", addr),
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize),
	)
	return srv.Start(ctx)
}
