package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/fault"
	"github.com/docsift/docsift/internal/index"
)

// ListingBlob extends Blob with prefix listing.
type ListingBlob interface {
	Blob
	List(ctx context.Context, prefix string) ([]string, error)
}

// SingleIndexer upserts one document at a time.
type SingleIndexer interface {
	IndexOne(ctx context.Context, doc *index.Document) error
}

// ReindexResult summarizes one reindex pass over the image sidecars.
type ReindexResult struct {
	Scanned int    `json:"scanned"`
	Indexed int    `json:"indexed"`
	Skips   []Skip `json:"skips,omitempty"`
}

// Reindexer rebuilds image documents from their metadata sidecars
// without re-parsing any source file. It refreshes embeddings, so an
// embedding model change only needs this pass, not full re-ingestion.
type Reindexer struct {
	blob       ListingBlob
	embedder   Embedder
	multimodal MultimodalEmbedder
	indexer    SingleIndexer
	log        *slog.Logger
}

func NewReindexer(b ListingBlob, embedder Embedder, multimodal MultimodalEmbedder, indexer SingleIndexer, log *slog.Logger) *Reindexer {
	if log == nil {
		log = slog.Default()
	}
	return &Reindexer{
		blob:       b,
		embedder:   embedder,
		multimodal: multimodal,
		indexer:    indexer,
		log:        log,
	}
}

// Reindex walks every image sidecar and upserts its index document.
// A sidecar that cannot be replayed is skipped and the walk continues;
// the error return is reserved for the initial listing.
func (r *Reindexer) Reindex(ctx context.Context) (*ReindexResult, error) {
	keys, err := r.blob.List(ctx, blob.ImageMetaPrefix)
	if err != nil {
		return nil, fault.New(fault.Fetch, "list image metadata", err)
	}

	res := &ReindexResult{}
	for _, key := range keys {
		res.Scanned++
		if err := r.reindexOne(ctx, key); err != nil {
			res.Skips = append(res.Skips, Skip{
				Kind:   string(fault.KindOf(err)),
				Ref:    key,
				Reason: err.Error(),
			})
			r.log.Warn("sidecar skipped",
				"sidecar", key,
				"fault", string(fault.KindOf(err)),
				"error", err)
			continue
		}
		res.Indexed++
	}

	r.log.Info("image reindex finished",
		"scanned", res.Scanned,
		"indexed", res.Indexed,
		"skips", len(res.Skips))
	return res, nil
}

func (r *Reindexer) reindexOne(ctx context.Context, metaKey string) error {
	raw, err := r.blob.Get(ctx, metaKey)
	if err != nil {
		return fault.New(fault.Fetch, "fetch sidecar", err)
	}
	var meta ImageSidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fault.New(fault.Extraction, "decode sidecar", err)
	}
	if meta.ID == "" || meta.S3Path == "" {
		return fault.New(fault.Extraction, "decode sidecar", errors.New("missing id or s3_path"))
	}

	_, assetKey, err := blob.ParseS3URI(meta.S3Path)
	if err != nil {
		return fault.New(fault.Extraction, "decode sidecar", err)
	}
	imageData, err := r.blob.Get(ctx, assetKey)
	if err != nil {
		return fault.New(fault.Fetch, "fetch asset "+assetKey, err)
	}

	chunkID := "img_" + meta.ID
	doc := &index.Document{
		ChunkID:      chunkID,
		Content:      meta.Description,
		DocumentID:   blob.Basename(meta.OriginalFile),
		DocumentType: index.TypeImage,
		Source:       meta.OriginalFile,
		Metadata: index.Metadata{
			Filename:  meta.OriginalFile,
			Filepath:  blob.SourcePrefix + meta.OriginalFile,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			FileType:  strings.TrimPrefix(strings.ToLower(filepath.Ext(assetKey)), "."),
			Image: &index.ImageInfo{
				Width:  meta.Width,
				Height: meta.Height,
				S3Path: meta.S3Path,
			},
		},
	}

	var embedErr error
	if meta.Description != "" {
		vec, err := r.embedder.Embed(ctx, meta.Description)
		if err != nil {
			embedErr = err
		} else {
			doc.TextEmbedding = vec
		}
	}
	if r.multimodal != nil {
		vec, err := r.multimodal.EmbedMultimodal(ctx, meta.Description, imageData)
		if err != nil {
			if embedErr == nil {
				embedErr = err
			}
		} else {
			doc.MultimodalEmbedding = vec
		}
	}
	if len(doc.TextEmbedding) == 0 && len(doc.MultimodalEmbedding) == 0 {
		if embedErr == nil {
			embedErr = errors.New("no embedding model produced a vector")
		}
		return fault.New(fault.Embedding, "embed "+chunkID, embedErr)
	}

	if err := r.indexer.IndexOne(ctx, doc); err != nil {
		return fault.New(fault.IndexWrite, "index "+chunkID, err)
	}
	return nil
}
