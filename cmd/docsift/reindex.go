package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/pipeline"
)

var reindexImagesCmd = &cobra.Command{
	Use:   "reindex-images",
	Short: "Rebuild image index documents from stored sidecars",
	Long: `Walks the image metadata sidecars under metadata/images/, re-embeds
each stored description against the current embedding models, and writes
the image documents back to the index. Use after changing embedding
models or rebuilding the index.`,
	RunE: runReindexImages,
}

func init() {
	rootCmd.AddCommand(reindexImagesCmd)
}

func runReindexImages(cmd *cobra.Command, _ []string) error {
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
	text, multi, err := newEmbedders(cfg, log)
	if err != nil {
		return err
	}

	var mm pipeline.MultimodalEmbedder
	if multi != nil {
		mm = multi
	}
	reindexer := pipeline.NewReindexer(blobs, text, mm, idx, log)

	res, err := reindexer.Reindex(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("%d sidecars scanned, %d images indexed, %d skipped\n",
		res.Scanned, res.Indexed, len(res.Skips))
	for _, s := range res.Skips {
		cmd.Printf("    skipped %s %s: %s\n", s.Kind, s.Ref, s.Reason)
	}
	return nil
}
