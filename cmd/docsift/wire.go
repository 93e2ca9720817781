package main

import (
	"fmt"
	"log/slog"

	"github.com/docsift/docsift/internal/assets"
	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/chunker"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/describe"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/pipeline"
)

func newBlobStore(cfg config.Config) (*blob.Store, error) {
	return blob.NewStore(blob.Options{
		Endpoint:  cfg.BlobEndpoint,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Bucket:    cfg.BlobBucket,
		UseSSL:    cfg.BlobUseSSL,
	})
}

func newIndexStore(cfg config.Config) (*index.Store, error) {
	return index.NewStore(index.Options{
		URL:      cfg.OpenSearchURL,
		Username: cfg.OpenSearchUsername,
		Password: cfg.OpenSearchPassword,
		Index:    cfg.IndexName,
		Dims: index.Dims{
			Text:       cfg.TextDim,
			Image:      cfg.ImageDim,
			Multimodal: cfg.MultimodalDim,
		},
		Timeout: cfg.IndexTimeout,
	})
}

func newDescriber(cfg config.Config, model string) (*describe.Client, error) {
	if model == "" {
		model = cfg.DescribeModel
	}
	c, err := describe.NewClient(describe.Options{
		Model:     model,
		BaseURL:   cfg.DescribeEndpoint,
		APIKey:    cfg.DescribeAPIKey,
		Timeout:   cfg.ModelTimeout,
		RateLimit: cfg.ModelRateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("description model: %w", err)
	}
	return c, nil
}

// newEmbedders builds the text embedding client and, best effort, the
// multimodal one. A misconfigured multimodal model degrades to
// text-only embeddings rather than blocking ingestion.
func newEmbedders(cfg config.Config, log *slog.Logger) (*embed.Client, *embed.Client, error) {
	text, err := embed.NewClient(embed.Options{
		Model:   cfg.EmbedModel,
		BaseURL: cfg.EmbedEndpoint,
		APIKey:  cfg.EmbedAPIKey,
		Timeout: cfg.ModelTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("embedding model: %w", err)
	}

	multi, err := embed.NewClient(embed.Options{
		Model:   cfg.MultimodalModel,
		BaseURL: cfg.MultimodalEndpoint,
		APIKey:  cfg.EmbedAPIKey,
		Timeout: cfg.ModelTimeout,
	})
	if err != nil {
		log.Warn("multimodal embedding disabled", "model", cfg.MultimodalModel, "error", err)
		multi = nil
	}
	return text, multi, nil
}

func newIngestor(cfg config.Config, blobs *blob.Store, idx *index.Store, desc *describe.Client, text, multi *embed.Client, log *slog.Logger) *pipeline.Ingestor {
	extractor := assets.NewExtractor(
		assets.Filter{MinDim: cfg.ImageMinDim, BlankRatio: cfg.BlankRatio},
		assets.Detector{MinRows: cfg.TableMinRows, MinCols: cfg.TableMinCols},
	)

	deps := pipeline.IngestorDeps{
		Blob:      blobs,
		Bucket:    blobs.Bucket(),
		Extractor: extractor,
		Embedder:  text,
		Indexer:   idx,
		ChunkCfg: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
		Log: log,
	}
	// Optional collaborators stay nil interfaces when absent.
	if desc != nil {
		deps.Describer = desc
	}
	if multi != nil {
		deps.Multimodal = multi
	}
	return pipeline.NewIngestor(deps)
}
