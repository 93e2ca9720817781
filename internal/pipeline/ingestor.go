// Package pipeline turns source blobs into indexed documents. An
// Ingestor runs the whole sequence for one document: fetch, parse,
// extract assets, describe them, upload assets and their metadata
// sidecars, reconstruct markup, chunk, embed, and index. Item-level
// failures become skips on the result; only a failed fetch or parse
// fails the document. The Orchestrator runs ingestors from a worker
// pool and tracks jobs.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/docsift/docsift/internal/assemble"
	"github.com/docsift/docsift/internal/assets"
	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/chunker"
	"github.com/docsift/docsift/internal/describe"
	"github.com/docsift/docsift/internal/fault"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/parser"
)

// Result status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Skip records one item-level failure that did not abort the document.
type Skip struct {
	Kind   string `json:"kind"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Result summarizes one document ingestion. Chunks counts chunks
// attempted; ChunksIndexed counts the text chunks the index accepted.
type Result struct {
	DocumentKey   string `json:"document_key"`
	Status        string `json:"status"`
	Pages         int    `json:"pages"`
	Images        int    `json:"images"`
	Tables        int    `json:"tables"`
	Chunks        int    `json:"chunks"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Skips         []Skip `json:"skips,omitempty"`
	Err           string `json:"error,omitempty"`
}

// Blob is the slice of blob storage ingestion needs.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Extractor pulls image and table assets out of raw document bytes.
type Extractor interface {
	FromPDF(data []byte) *assets.Extraction
	FromImage(data []byte, filename string) (*assets.Extraction, error)
	FromCSV(records [][]string) *assets.Extraction
}

// Describer generates asset descriptions with a vision model.
type Describer interface {
	Describe(ctx context.Context, prompt string, image []byte) (string, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder produces text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MultimodalEmbedder produces joint text and image embeddings.
type MultimodalEmbedder interface {
	EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error)
}

// Indexer writes documents to the search index.
type Indexer interface {
	BulkIndex(ctx context.Context, docs []*index.Document) (map[string]string, error)
}

// IngestorDeps wires an Ingestor. Blob, Extractor, Embedder, and
// Indexer are required. Describer and Multimodal may be nil: without a
// describer assets carry empty descriptions, without a multimodal
// embedder image documents index on the description embedding alone.
type IngestorDeps struct {
	Blob       Blob
	Bucket     string
	Extractor  Extractor
	Describer  Describer
	Embedder   Embedder
	Multimodal MultimodalEmbedder
	Indexer    Indexer
	ChunkCfg   chunker.Config
	Log        *slog.Logger
}

// Ingestor runs the full ingestion sequence for one document at a time.
type Ingestor struct {
	blob       Blob
	bucket     string
	extractor  Extractor
	describer  Describer
	embedder   Embedder
	multimodal MultimodalEmbedder
	indexer    Indexer
	chunkCfg   chunker.Config
	log        *slog.Logger

	parse func(key string, data []byte) (*parser.Document, error)
}

func NewIngestor(deps IngestorDeps) *Ingestor {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	cfg := deps.ChunkCfg
	if cfg.ChunkSize <= 0 {
		cfg = chunker.DefaultConfig()
	}
	return &Ingestor{
		blob:       deps.Blob,
		bucket:     deps.Bucket,
		extractor:  deps.Extractor,
		describer:  deps.Describer,
		embedder:   deps.Embedder,
		multimodal: deps.Multimodal,
		indexer:    deps.Indexer,
		chunkCfg:   cfg,
		log:        log,
		parse:      parseFile,
	}
}

func parseFile(key string, data []byte) (*parser.Document, error) {
	p, err := parser.ForFile(key)
	if err != nil {
		return nil, err
	}
	return p.Parse(bytes.NewReader(data), key)
}

// Ingest processes the document stored at key and reports what happened.
// The returned result is never nil.
func (ing *Ingestor) Ingest(ctx context.Context, key string) *Result {
	res := &Result{DocumentKey: key, Status: StatusSuccess}

	data, err := ing.blob.Get(ctx, key)
	if err != nil {
		return ing.fail(res, fault.New(fault.Fetch, "fetch "+key, err))
	}

	source := blob.SourceName(key)
	if parser.KindForFile(key) == parser.KindImage {
		return ing.ingestImage(ctx, key, source, data, res)
	}

	doc, err := ing.parse(key, data)
	if err != nil {
		return ing.fail(res, fault.New(fault.Extraction, "parse "+key, err))
	}
	res.Pages = len(doc.Pages)

	ex := ing.extract(key, data)
	ing.recordExtractionSkips(res, ex.Skips)

	var figures []assemble.Asset
	var imageDocs []*index.Document
	for _, img := range ex.Images {
		fig, idoc := ing.processImage(ctx, key, source, img, res)
		figures = append(figures, fig)
		if idoc != nil {
			imageDocs = append(imageDocs, idoc)
		}
	}

	var tables []assemble.Asset
	for _, tbl := range ex.Tables {
		tables = append(tables, ing.processTable(ctx, source, tbl, res))
	}

	markdown := assemble.Reconstruct(doc, figures, tables)
	processedKey := blob.ProcessedKey(key)
	if err := ing.blob.Put(ctx, processedKey, []byte(markdown), "text/markdown"); err != nil {
		ing.skip(res, fault.Extraction, processedKey, fmt.Errorf("upload processed markup: %w", err))
	}

	chunks := chunker.Split(markdown, ing.chunkCfg)
	res.Chunks = len(chunks)

	basename := blob.Basename(key)
	now := time.Now().UTC().Format(time.RFC3339)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")

	textDocs := make([]*index.Document, 0, len(chunks))
	for _, c := range chunks {
		chunkID := fmt.Sprintf("%s_%d", basename, c.Index)
		vec, err := ing.embedder.Embed(ctx, c.Text)
		if err != nil {
			ing.skip(res, fault.Embedding, chunkID, err)
			continue
		}
		textDocs = append(textDocs, &index.Document{
			ChunkID:      chunkID,
			Content:      c.Text,
			DocumentID:   basename,
			DocumentType: index.TypeText,
			Source:       source,
			Metadata: index.Metadata{
				Filename:   source,
				Filepath:   key,
				ChunkIndex: c.Index,
				CreatedAt:  now,
				FileType:   fileType,
			},
			TextEmbedding: vec,
		})
	}

	res.ChunksIndexed = ing.indexDocs(ctx, textDocs, res)
	ing.indexDocs(ctx, imageDocs, res)

	ing.log.Info("document ingested",
		"document", key,
		"pages", res.Pages,
		"images", res.Images,
		"tables", res.Tables,
		"chunks", res.Chunks,
		"indexed", res.ChunksIndexed,
		"skips", len(res.Skips))
	return res
}

// ingestImage handles a standalone image file: the image is the whole
// document, so there is no reconstruction or chunking pass.
func (ing *Ingestor) ingestImage(ctx context.Context, key, source string, data []byte, res *Result) *Result {
	ex, err := ing.extractor.FromImage(data, key)
	if err != nil {
		return ing.fail(res, fault.New(fault.Extraction, "decode "+key, err))
	}
	res.Pages = 1
	ing.recordExtractionSkips(res, ex.Skips)

	var imageDocs []*index.Document
	for _, img := range ex.Images {
		_, idoc := ing.processImage(ctx, key, source, img, res)
		if idoc != nil {
			imageDocs = append(imageDocs, idoc)
		}
	}
	ing.indexDocs(ctx, imageDocs, res)

	ing.log.Info("image ingested",
		"document", key,
		"images", res.Images,
		"skips", len(res.Skips))
	return res
}

// extract runs the asset pass appropriate to the file kind. Text-only
// formats carry no assets.
func (ing *Ingestor) extract(key string, data []byte) *assets.Extraction {
	switch parser.KindForFile(key) {
	case parser.KindPDF:
		return ing.extractor.FromPDF(data)
	case parser.KindCSV:
		records, err := parser.ReadCSV(bytes.NewReader(data))
		if err != nil {
			return &assets.Extraction{Skips: []assets.Skip{{Kind: "table", Ref: "document", Reason: err.Error()}}}
		}
		return ing.extractor.FromCSV(records)
	default:
		return &assets.Extraction{}
	}
}

// processImage describes and uploads one extracted image and prepares
// its index document. The figure asset is always returned so the
// reconstructed markup stays complete; the index document is nil when
// no embedding could be produced.
func (ing *Ingestor) processImage(ctx context.Context, key, source string, img assets.Image, res *Result) (assemble.Asset, *index.Document) {
	desc := ing.describeImage(ctx, img, res)

	assetKey := blob.ImageKey(img.ID, img.FileType)
	location := blob.S3URI(ing.bucket, assetKey)
	if err := ing.blob.Put(ctx, assetKey, img.Data, imageContentType(img.FileType)); err != nil {
		ing.skip(res, fault.Extraction, "image "+img.ID, fmt.Errorf("upload asset: %w", err))
	}

	ing.putJSON(ctx, blob.ImageMetaKey(img.ID), ImageSidecar{
		ID:           img.ID,
		OriginalFile: source,
		Width:        img.Info.Width,
		Height:       img.Info.Height,
		Description:  desc,
		S3Path:       location,
		PageNumber:   img.Page,
		ImageIndex:   img.Ordinal,
	}, "image "+img.ID, res)

	res.Images++

	fig := assemble.Asset{Page: img.Page, Ordinal: img.Ordinal, Description: desc, Location: location}
	return fig, ing.imageDocument(ctx, key, source, img, desc, location, res)
}

// processTable describes and uploads one extracted table and returns its
// markup asset. Tables are not indexed on their own, their description
// reaches the index inside the reconstructed page text.
func (ing *Ingestor) processTable(ctx context.Context, source string, tbl assets.Table, res *Result) assemble.Asset {
	desc := ing.describeTable(ctx, &tbl, res)

	assetKey := blob.TableKey(tbl.ID)
	location := blob.S3URI(ing.bucket, assetKey)
	csvData, err := tbl.CSV()
	if err != nil {
		ing.skip(res, fault.Extraction, "table "+tbl.ID, fmt.Errorf("render csv: %w", err))
	} else if err := ing.blob.Put(ctx, assetKey, csvData, "text/csv"); err != nil {
		ing.skip(res, fault.Extraction, "table "+tbl.ID, fmt.Errorf("upload asset: %w", err))
	}

	columns := 0
	if len(tbl.Rows) > 0 {
		columns = len(tbl.Rows[0])
	}
	ing.putJSON(ctx, blob.TableMetaKey(tbl.ID), TableSidecar{
		ID:           tbl.ID,
		OriginalFile: source,
		Rows:         len(tbl.Rows),
		Columns:      columns,
		Description:  desc,
		S3Path:       location,
		PageNumber:   tbl.Page,
		TableIndex:   tbl.Ordinal,
	}, "table "+tbl.ID, res)

	res.Tables++
	return assemble.Asset{Page: tbl.Page, Ordinal: tbl.Ordinal, Description: desc, Location: location}
}

// imageDocument builds the index document for an image asset. It needs
// at least one embedding to be worth indexing; with none it is dropped
// with an embedding skip.
func (ing *Ingestor) imageDocument(ctx context.Context, key, source string, img assets.Image, desc, location string, res *Result) *index.Document {
	chunkID := "img_" + img.ID
	doc := &index.Document{
		ChunkID:      chunkID,
		Content:      desc,
		DocumentID:   blob.Basename(key),
		DocumentType: index.TypeImage,
		Source:       source,
		Metadata: index.Metadata{
			Filename:  source,
			Filepath:  key,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			FileType:  img.FileType,
			Image: &index.ImageInfo{
				Width:  img.Info.Width,
				Height: img.Info.Height,
				S3Path: location,
			},
		},
	}

	var embedErr error
	if desc != "" {
		vec, err := ing.embedder.Embed(ctx, desc)
		if err != nil {
			embedErr = err
		} else {
			doc.TextEmbedding = vec
		}
	}
	if ing.multimodal != nil {
		vec, err := ing.multimodal.EmbedMultimodal(ctx, desc, img.Data)
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
		ing.skip(res, fault.Embedding, chunkID, embedErr)
		return nil
	}
	if embedErr != nil {
		ing.log.Warn("image embedding partial",
			"chunk", chunkID,
			"fault", string(fault.Embedding),
			"error", embedErr)
	}
	return doc
}

// describeImage returns the model's description of an image, or an
// empty string after recording a description skip. The asset is still
// uploaded and indexed either way.
func (ing *Ingestor) describeImage(ctx context.Context, img assets.Image, res *Result) string {
	if ing.describer == nil {
		return ""
	}
	desc, err := ing.describer.Describe(ctx, describe.ImagePrompt, img.Data)
	if err != nil {
		ing.skip(res, fault.Description, "image "+img.ID, err)
		return ""
	}
	return strings.TrimSpace(desc)
}

func (ing *Ingestor) describeTable(ctx context.Context, tbl *assets.Table, res *Result) string {
	if ing.describer == nil {
		return ""
	}
	desc, err := ing.describer.Generate(ctx, describe.BuildTablePrompt(tbl.Text()))
	if err != nil {
		ing.skip(res, fault.Description, "table "+tbl.ID, err)
		return ""
	}
	return strings.TrimSpace(desc)
}

// indexDocs bulk-writes documents and converts failures to skips. It
// returns how many documents the index accepted.
func (ing *Ingestor) indexDocs(ctx context.Context, docs []*index.Document, res *Result) int {
	if len(docs) == 0 {
		return 0
	}
	failed, err := ing.indexer.BulkIndex(ctx, docs)
	if err != nil {
		ing.skip(res, fault.IndexWrite, fmt.Sprintf("%d documents", len(docs)), err)
		return 0
	}
	for id, reason := range failed {
		ing.skip(res, fault.IndexWrite, id, errors.New(reason))
	}
	return len(docs) - len(failed)
}

func (ing *Ingestor) putJSON(ctx context.Context, key string, v any, ref string, res *Result) {
	data, err := json.Marshal(v)
	if err != nil {
		ing.skip(res, fault.Extraction, ref, fmt.Errorf("encode metadata: %w", err))
		return
	}
	if err := ing.blob.Put(ctx, key, data, "application/json"); err != nil {
		ing.skip(res, fault.Extraction, ref, fmt.Errorf("upload metadata: %w", err))
	}
}

func (ing *Ingestor) recordExtractionSkips(res *Result, skips []assets.Skip) {
	for _, s := range skips {
		res.Skips = append(res.Skips, Skip{
			Kind:   string(fault.Extraction),
			Ref:    s.Kind + " " + s.Ref,
			Reason: s.Reason,
		})
	}
}

func (ing *Ingestor) skip(res *Result, kind fault.Kind, ref string, err error) {
	res.Skips = append(res.Skips, Skip{Kind: string(kind), Ref: ref, Reason: err.Error()})
	ing.log.Warn("pipeline item skipped",
		"document", res.DocumentKey,
		"ref", ref,
		"fault", string(kind),
		"error", err)
}

func (ing *Ingestor) fail(res *Result, err error) *Result {
	res.Status = StatusFailed
	res.Err = err.Error()
	ing.log.Error("ingestion failed",
		"document", res.DocumentKey,
		"fault", string(fault.KindOf(err)),
		"error", err)
	return res
}

func imageContentType(fileType string) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
