package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/pipeline"
)

var processModel string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Ingest every document under source/",
	Long: `Runs the ingestion pipeline over every object under the source/
prefix, one document at a time: parse, extract assets, describe, embed,
and index.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processModel, "model", "", "override the description model")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	log := newLogger(os.Stderr)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

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
	desc, err := newDescriber(cfg, processModel)
	if err != nil {
		return err
	}
	text, multi, err := newEmbedders(cfg, log)
	if err != nil {
		return err
	}

	keys, err := blobs.List(ctx, blob.SourcePrefix)
	if err != nil {
		return fmt.Errorf("list source documents: %w", err)
	}
	if len(keys) == 0 {
		cmd.Println("no documents under " + blob.SourcePrefix)
		return nil
	}

	ingestor := newIngestor(cfg, blobs, idx, desc, text, multi, log)

	var failed int
	for _, key := range keys {
		res := ingestor.Ingest(ctx, key)
		printResult(cmd, res)
		if res.Status == pipeline.StatusFailed {
			failed++
		}
	}

	cmd.Printf("\n%d documents processed, %d failed (model %s)\n", len(keys)-failed, failed, desc.Model())
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(keys))
	}
	return nil
}

func printResult(cmd *cobra.Command, res *pipeline.Result) {
	if res.Status == pipeline.StatusFailed {
		cmd.Printf("%-50s FAILED  %s\n", res.DocumentKey, res.Err)
		return
	}
	cmd.Printf("%-50s ok  pages=%d chunks=%d/%d images=%d tables=%d skips=%d\n",
		res.DocumentKey, res.Pages, res.ChunksIndexed, res.Chunks,
		res.Images, res.Tables, len(res.Skips))
	for _, s := range res.Skips {
		cmd.Printf("    skipped %s %s: %s\n", s.Kind, s.Ref, s.Reason)
	}
}
