package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/api"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/grants"
	"github.com/docsift/docsift/internal/pipeline"
	"github.com/docsift/docsift/internal/rerank"
	"github.com/docsift/docsift/internal/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger(os.Stdout)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}
	idx, err := newIndexStore(cfg)
	if err != nil {
		return err
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	desc, err := newDescriber(cfg, "")
	if err != nil {
		return err
	}
	text, multi, err := newEmbedders(cfg, log)
	if err != nil {
		return err
	}

	grantStore, err := grants.NewPostgresStore(ctx, cfg.GrantsDSN)
	if err != nil {
		return fmt.Errorf("connect grants store: %w", err)
	}
	defer grantStore.Close()

	engineDeps := search.Deps{
		Store: idx,
		Auth:  grants.NewResolver(grantStore, log),
		Text:  text,
		Log:   log,
	}
	if multi != nil {
		engineDeps.Multimodal = multi
	}
	if cfg.RerankEndpoint != "" {
		rr := rerank.NewClient(cfg.RerankEndpoint, cfg.RerankModel, cfg.RerankAPIKey, cfg.ModelTimeout)
		defer rr.Close()
		engineDeps.Reranker = rr
	}
	if gen, err := newDescriber(cfg, cfg.AnswerModel); err != nil {
		log.Warn("answer generation disabled", "model", cfg.AnswerModel, "error", err)
	} else {
		engineDeps.Generator = gen
	}
	engine := search.NewEngine(engineDeps)

	ingestor := newIngestor(cfg, blobs, idx, desc, text, multi, log)
	orch := pipeline.NewOrchestrator(ingestor, pipeline.OrchestratorOptions{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.MaxQueueSize,
		JobTTL:    cfg.JobTTL,
	}, log)
	orch.Start(ctx)

	srv := api.NewServer(api.Deps{
		Engine:     engine,
		Jobs:       orch,
		Blobs:      blobs,
		IndexStats: idx,
		ModelStats: desc,
	}, api.Options{
		AuthToken:      cfg.APIAuthToken,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log)

	httpServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docsift", "addr", cfg.APIAddr, "index", cfg.IndexName)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
