package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/docsift/docsift/internal/assets"
	"github.com/docsift/docsift/internal/chunker"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/parser"
)

type fakeBlob struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	getErr       map[string]error
	putErr       map[string]error
	listErr      error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		getErr:       make(map[string]error),
		putErr:       make(map[string]error),
	}
}

func (b *fakeBlob) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.getErr[key]; err != nil {
		return nil, err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return data, nil
}

func (b *fakeBlob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.putErr[key]; err != nil {
		return err
	}
	b.objects[key] = append([]byte(nil), data...)
	b.contentTypes[key] = contentType
	return nil
}

func (b *fakeBlob) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type fakeExtractor struct {
	extraction *assets.Extraction
	imageErr   error
}

func (e *fakeExtractor) result() *assets.Extraction {
	if e.extraction == nil {
		return &assets.Extraction{}
	}
	return e.extraction
}

func (e *fakeExtractor) FromPDF(data []byte) *assets.Extraction { return e.result() }

func (e *fakeExtractor) FromImage(data []byte, filename string) (*assets.Extraction, error) {
	if e.imageErr != nil {
		return nil, e.imageErr
	}
	return e.result(), nil
}

func (e *fakeExtractor) FromCSV(records [][]string) *assets.Extraction { return e.result() }

type fakeDescriber struct {
	desc        string
	describeErr error
	generateErr error
	describes   int
	generates   int
}

func (d *fakeDescriber) Describe(ctx context.Context, prompt string, image []byte) (string, error) {
	d.describes++
	if d.describeErr != nil {
		return "", d.describeErr
	}
	return d.desc, nil
}

func (d *fakeDescriber) Generate(ctx context.Context, prompt string) (string, error) {
	d.generates++
	if d.generateErr != nil {
		return "", d.generateErr
	}
	return d.desc, nil
}

type fakeEmbedder struct {
	vec    []float32
	err    error
	failOn string // text containing this substring fails
	calls  int
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding backend unavailable")
	}
	return e.vec, nil
}

type fakeMultimodal struct {
	vec   []float32
	err   error
	calls int
}

func (e *fakeMultimodal) EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	batches [][]*index.Document
	failed  map[string]string
	bulkErr error
	oneDocs []*index.Document
	oneErr  error
}

func (i *fakeIndexer) BulkIndex(ctx context.Context, docs []*index.Document) (map[string]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.bulkErr != nil {
		return nil, i.bulkErr
	}
	i.batches = append(i.batches, docs)
	return i.failed, nil
}

func (i *fakeIndexer) IndexOne(ctx context.Context, doc *index.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.oneErr != nil {
		return i.oneErr
	}
	i.oneDocs = append(i.oneDocs, doc)
	return nil
}

func (i *fakeIndexer) allDocs() []*index.Document {
	i.mu.Lock()
	defer i.mu.Unlock()
	var all []*index.Document
	for _, b := range i.batches {
		all = append(all, b...)
	}
	return all
}

func (i *fakeIndexer) doc(chunkID string) *index.Document {
	for _, d := range i.allDocs() {
		if d.ChunkID == chunkID {
			return d
		}
	}
	return nil
}

type fakes struct {
	blob       *fakeBlob
	extractor  *fakeExtractor
	describer  *fakeDescriber
	embedder   *fakeEmbedder
	multimodal *fakeMultimodal
	indexer    *fakeIndexer
}

func newFakes() *fakes {
	return &fakes{
		blob:       newFakeBlob(),
		extractor:  &fakeExtractor{},
		describer:  &fakeDescriber{desc: "a described asset"},
		embedder:   &fakeEmbedder{vec: []float32{0.1, 0.2}},
		multimodal: &fakeMultimodal{vec: []float32{0.3, 0.4}},
		indexer:    &fakeIndexer{},
	}
}

func (f *fakes) ingestor(cfg chunker.Config) *Ingestor {
	deps := IngestorDeps{
		Blob:      f.blob,
		Bucket:    "docs",
		Extractor: f.extractor,
		Embedder:  f.embedder,
		Indexer:   f.indexer,
		ChunkCfg:  cfg,
		Log:       quietLogger(),
	}
	// Assign through the concrete types so a nil fake stays a nil
	// interface.
	if f.describer != nil {
		deps.Describer = f.describer
	}
	if f.multimodal != nil {
		deps.Multimodal = f.multimodal
	}
	return NewIngestor(deps)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countSkips(res *Result, kind string) int {
	n := 0
	for _, s := range res.Skips {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func TestIngest_TextDocument(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/notes.txt"] = []byte("Setup steps for the gateway.\n\nThe gateway binds port 8080 by default.")
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/notes.txt")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Pages != 1 {
		t.Errorf("expected 1 page, got %d", res.Pages)
	}
	if res.Chunks != 1 || res.ChunksIndexed != 1 {
		t.Errorf("expected 1 chunk indexed, got chunks=%d indexed=%d", res.Chunks, res.ChunksIndexed)
	}
	if len(res.Skips) != 0 {
		t.Errorf("expected no skips, got %+v", res.Skips)
	}

	if _, ok := f.blob.objects["processed/notes.md"]; !ok {
		t.Error("expected processed markup at processed/notes.md")
	}

	doc := f.indexer.doc("notes_0")
	if doc == nil {
		t.Fatal("expected chunk notes_0 to be indexed")
	}
	if doc.DocumentType != index.TypeText || doc.DocumentID != "notes" {
		t.Errorf("expected text document for notes, got %+v", doc)
	}
	if doc.Source != "notes.txt" {
		t.Errorf("expected source %q, got %q", "notes.txt", doc.Source)
	}
	if doc.Metadata.Filepath != "source/notes.txt" || doc.Metadata.FileType != "txt" {
		t.Errorf("expected metadata to carry the storage key, got %+v", doc.Metadata)
	}
	if len(doc.TextEmbedding) == 0 {
		t.Error("expected a text embedding on the chunk")
	}
}

func TestIngest_FetchFailureFailsDocument(t *testing.T) {
	f := newFakes()
	f.blob.getErr["source/gone.txt"] = errors.New("connection refused")
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/gone.txt")

	if res.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, res.Status)
	}
	if !strings.Contains(res.Err, "fetch") {
		t.Errorf("expected fetch error, got %q", res.Err)
	}
	if len(f.indexer.allDocs()) != 0 {
		t.Error("expected nothing indexed for a failed fetch")
	}
}

func TestIngest_PartialTableFailureKeepsDocument(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/report.pdf"] = []byte("%PDF-stub")
	f.extractor.extraction = &assets.Extraction{
		Tables: []assets.Table{
			{ID: "t1", Page: 1, Ordinal: 0, Rows: [][]string{{"region", "count"}, {"east", "4"}}},
			{ID: "t3", Page: 3, Ordinal: 0, Rows: [][]string{{"sku", "price"}, {"w-1", "9"}}},
		},
		Skips: []assets.Skip{{Kind: "table", Ref: "page 2", Reason: "malformed region"}},
	}
	ing := f.ingestor(chunker.Config{})
	ing.parse = func(key string, data []byte) (*parser.Document, error) {
		return &parser.Document{Title: "report", Pages: []parser.Page{
			{Number: 1, Text: "Quarterly totals by region."},
			{Number: 2, Text: "Narrative for the broken page."},
			{Number: 3, Text: "Pricing appendix."},
		}}, nil
	}

	res := ing.Ingest(context.Background(), "source/report.pdf")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", res.Pages)
	}
	if res.Tables != 2 {
		t.Errorf("expected 2 surviving tables, got %d", res.Tables)
	}
	if got := countSkips(res, "extraction"); got != 1 {
		t.Errorf("expected 1 extraction skip, got %d (%+v)", got, res.Skips)
	}
	if res.Chunks == 0 || res.ChunksIndexed != res.Chunks {
		t.Errorf("expected full chunk output, got chunks=%d indexed=%d", res.Chunks, res.ChunksIndexed)
	}

	markdown := string(f.blob.objects["processed/report.md"])
	if strings.Count(markdown, "<table>") != 2 {
		t.Errorf("expected both surviving tables in the markup, got %q", markdown)
	}
	if !strings.Contains(markdown, "s3://docs/tables/t1.csv") || !strings.Contains(markdown, "s3://docs/tables/t3.csv") {
		t.Errorf("expected table data locations in the markup, got %q", markdown)
	}
}

func TestIngest_DescribeFailureStillUploadsAndIndexes(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/guide.pdf"] = []byte("%PDF-stub")
	f.describer.describeErr = errors.New("model overloaded")
	f.extractor.extraction = &assets.Extraction{
		Images: []assets.Image{{
			ID:       "aaa-111",
			Page:     1,
			Ordinal:  0,
			FileType: "png",
			Data:     []byte{1, 2, 3},
			Info:     assets.ImageInfo{Width: 320, Height: 200},
		}},
	}
	ing := f.ingestor(chunker.Config{})
	ing.parse = func(key string, data []byte) (*parser.Document, error) {
		return &parser.Document{Pages: []parser.Page{{Number: 1, Text: "Diagram page."}}}, nil
	}

	res := ing.Ingest(context.Background(), "source/guide.pdf")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Images != 1 {
		t.Errorf("expected 1 image, got %d", res.Images)
	}
	if got := countSkips(res, "description"); got != 1 {
		t.Errorf("expected 1 description skip, got %d (%+v)", got, res.Skips)
	}

	if _, ok := f.blob.objects["images/aaa-111.png"]; !ok {
		t.Error("expected image asset uploaded despite describe failure")
	}
	if ct := f.blob.contentTypes["images/aaa-111.png"]; ct != "image/png" {
		t.Errorf("expected image/png content type, got %q", ct)
	}

	var meta ImageSidecar
	if err := json.Unmarshal(f.blob.objects["metadata/images/aaa-111.json"], &meta); err != nil {
		t.Fatalf("expected image sidecar, got %v", err)
	}
	if meta.Description != "" || meta.Width != 320 || meta.OriginalFile != "guide.pdf" {
		t.Errorf("expected empty description with image metadata, got %+v", meta)
	}
	if meta.S3Path != "s3://docs/images/aaa-111.png" {
		t.Errorf("expected s3 path to the asset, got %q", meta.S3Path)
	}

	doc := f.indexer.doc("img_aaa-111")
	if doc == nil {
		t.Fatal("expected image document indexed despite describe failure")
	}
	if doc.Content != "" {
		t.Errorf("expected empty content, got %q", doc.Content)
	}
	if len(doc.MultimodalEmbedding) == 0 {
		t.Error("expected a multimodal embedding from the raw image")
	}
	if doc.Metadata.Image == nil || doc.Metadata.Image.Width != 320 {
		t.Errorf("expected image metadata on the document, got %+v", doc.Metadata)
	}
}

func TestIngest_ChunkEmbedFailureSkipsChunk(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/notes.txt"] = []byte(
		"The quick brown fox jumps over the lazy dog near the bank.\n\nFAILWORD starts this paragraph about embedding outages today.")
	f.embedder.failOn = "FAILWORD"
	ing := f.ingestor(chunker.Config{ChunkSize: 70, ChunkOverlap: 0})

	res := ing.Ingest(context.Background(), "source/notes.txt")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Chunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", res.Chunks)
	}
	if res.ChunksIndexed != 1 {
		t.Errorf("expected 1 chunk indexed, got %d", res.ChunksIndexed)
	}
	if got := countSkips(res, "embedding"); got != 1 {
		t.Errorf("expected 1 embedding skip, got %d (%+v)", got, res.Skips)
	}
	if f.indexer.doc("notes_0") == nil {
		t.Error("expected the healthy chunk to be indexed")
	}
	if f.indexer.doc("notes_1") != nil {
		t.Error("expected the failed chunk to be skipped")
	}
}

func TestIngest_BulkRejectionsBecomeSkips(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/notes.txt"] = []byte(
		"The quick brown fox jumps over the lazy dog near the bank.\n\nAnother short paragraph about the gateway configuration.")
	f.indexer.failed = map[string]string{"notes_1": "mapping conflict"}
	ing := f.ingestor(chunker.Config{ChunkSize: 70, ChunkOverlap: 0})

	res := ing.Ingest(context.Background(), "source/notes.txt")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Chunks != 2 || res.ChunksIndexed != 1 {
		t.Errorf("expected 1 of 2 chunks indexed, got chunks=%d indexed=%d", res.Chunks, res.ChunksIndexed)
	}
	if got := countSkips(res, "index_write"); got != 1 {
		t.Errorf("expected 1 index_write skip, got %d (%+v)", got, res.Skips)
	}
}

func TestIngest_BulkTransportFailureSkipsBatch(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/notes.txt"] = []byte("A single paragraph about the gateway.")
	f.indexer.bulkErr = errors.New("cluster unreachable")
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/notes.txt")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.ChunksIndexed != 0 {
		t.Errorf("expected no chunks indexed, got %d", res.ChunksIndexed)
	}
	if got := countSkips(res, "index_write"); got != 1 {
		t.Errorf("expected 1 index_write skip, got %d (%+v)", got, res.Skips)
	}
}

func TestIngest_StandaloneImage(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/logo.png"] = []byte{0x89, 0x50}
	f.extractor.extraction = &assets.Extraction{
		Images: []assets.Image{{
			ID:       "bbb-222",
			Page:     1,
			FileType: "png",
			Data:     []byte{0x89, 0x50},
			Info:     assets.ImageInfo{Width: 640, Height: 480},
		}},
	}
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/logo.png")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Images != 1 || res.Chunks != 0 {
		t.Errorf("expected 1 image and no chunks, got %+v", res)
	}
	if f.indexer.doc("img_bbb-222") == nil {
		t.Error("expected the image document to be indexed")
	}
	if _, ok := f.blob.objects["processed/logo.md"]; ok {
		t.Error("expected no processed markup for a standalone image")
	}
	if f.describer.describes != 1 {
		t.Errorf("expected 1 describe call, got %d", f.describer.describes)
	}
}

func TestIngest_UndecodableImageFails(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/corrupt.png"] = []byte{0x00}
	f.extractor.imageErr = errors.New("decode source/corrupt.png: invalid header")
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/corrupt.png")

	if res.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, res.Status)
	}
	if len(f.indexer.allDocs()) != 0 {
		t.Error("expected nothing indexed for an undecodable image")
	}
}

func TestIngest_CSVCarriesTableAsset(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/billing.csv"] = []byte("item,cost\nwidget,3\ngadget,7\n")
	f.extractor.extraction = &assets.Extraction{
		Tables: []assets.Table{{
			ID:   "ccc-333",
			Page: 1,
			Rows: [][]string{{"item", "cost"}, {"widget", "3"}, {"gadget", "7"}},
		}},
	}
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/billing.csv")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Tables != 1 {
		t.Errorf("expected 1 table, got %d", res.Tables)
	}
	if _, ok := f.blob.objects["tables/ccc-333.csv"]; !ok {
		t.Error("expected table csv uploaded")
	}

	var meta TableSidecar
	if err := json.Unmarshal(f.blob.objects["metadata/tables/ccc-333.json"], &meta); err != nil {
		t.Fatalf("expected table sidecar, got %v", err)
	}
	if meta.Rows != 3 || meta.Columns != 2 || meta.OriginalFile != "billing.csv" {
		t.Errorf("expected 3x2 table metadata, got %+v", meta)
	}
	if f.describer.generates != 1 {
		t.Errorf("expected 1 table description call, got %d", f.describer.generates)
	}

	markdown := string(f.blob.objects["processed/billing.md"])
	if !strings.Contains(markdown, "<caption>a described asset</caption>") {
		t.Errorf("expected table caption in the markup, got %q", markdown)
	}
}

func TestIngest_ImageWithoutAnyEmbeddingIsNotIndexed(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/guide.pdf"] = []byte("%PDF-stub")
	f.describer.desc = "" // nothing to embed as text
	f.multimodal = nil
	f.extractor.extraction = &assets.Extraction{
		Images: []assets.Image{{ID: "ddd-444", Page: 1, FileType: "jpg", Data: []byte{9}}},
	}
	ing := f.ingestor(chunker.Config{})
	ing.parse = func(key string, data []byte) (*parser.Document, error) {
		return &parser.Document{Pages: []parser.Page{{Number: 1, Text: "Photo page."}}}, nil
	}

	res := ing.Ingest(context.Background(), "source/guide.pdf")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	if res.Images != 1 {
		t.Errorf("expected the asset still counted, got %d", res.Images)
	}
	if got := countSkips(res, "embedding"); got != 1 {
		t.Errorf("expected 1 embedding skip, got %d (%+v)", got, res.Skips)
	}
	if f.indexer.doc("img_ddd-444") != nil {
		t.Error("expected no index document without embeddings")
	}
	if _, ok := f.blob.objects["images/ddd-444.jpg"]; !ok {
		t.Error("expected the asset uploaded regardless")
	}
}

func TestIngest_SourceNameKeepsNestedPath(t *testing.T) {
	f := newFakes()
	f.blob.objects["source/archive/notes.txt"] = []byte("Archived paragraph about the gateway.")
	ing := f.ingestor(chunker.Config{})

	res := ing.Ingest(context.Background(), "source/archive/notes.txt")

	if res.Status != StatusSuccess {
		t.Fatalf("expected status %q, got %q (%s)", StatusSuccess, res.Status, res.Err)
	}
	doc := f.indexer.doc("notes_0")
	if doc == nil {
		t.Fatal("expected chunk notes_0 to be indexed")
	}
	if doc.Source != "archive/notes.txt" {
		t.Errorf("expected nested source name, got %q", doc.Source)
	}
}
