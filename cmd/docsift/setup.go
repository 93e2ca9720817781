package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/grants"
)

var setupOpensearchCmd = &cobra.Command{
	Use:   "setup-opensearch",
	Short: "Create the bucket, index, and grants schema",
	Long: `Creates the blob bucket, the OpenSearch index with its knn mappings,
and the grants table. Safe to run repeatedly; existing resources are
left untouched.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupOpensearchCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return err
	}
	cmd.Printf("bucket ready: %s\n", cfg.BlobBucket)

	idx, err := newIndexStore(cfg)
	if err != nil {
		return err
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		return err
	}
	cmd.Printf("index ready: %s\n", cfg.IndexName)

	grantStore, err := grants.NewPostgresStore(ctx, cfg.GrantsDSN)
	if err != nil {
		return fmt.Errorf("connect grants store: %w", err)
	}
	defer grantStore.Close()
	if err := grantStore.EnsureSchema(ctx); err != nil {
		return err
	}
	cmd.Println("grants schema ready")

	return nil
}
