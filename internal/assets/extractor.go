// Package assets extracts images and tables from source documents and
// filters out assets not worth describing. Individual asset failures are
// recorded as skips so one bad asset never sinks a document.
package assets

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	pdflib "github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Image is an extracted raster asset.
type Image struct {
	ID       string
	Page     int
	Ordinal  int // order of appearance among kept images on the page
	FileType string
	Data     []byte
	Info     ImageInfo
}

// Skip records an asset that was dropped and why.
type Skip struct {
	Kind   string // "image" or "table"
	Ref    string
	Reason string
}

// Extraction is everything pulled out of one document.
type Extraction struct {
	Images []Image
	Tables []Table
	Skips  []Skip
}

// Extractor pulls assets out of source files.
type Extractor struct {
	filter   Filter
	detector Detector
	conf     *pdfmodel.Configuration
}

// NewExtractor builds an extractor with the given image filter and table
// detection thresholds.
func NewExtractor(filter Filter, detector Detector) *Extractor {
	return &Extractor{
		filter:   filter,
		detector: detector,
		conf:     pdfapi.LoadConfiguration(),
	}
}

// FromPDF pulls embedded images and detected tables out of a PDF.
func (e *Extractor) FromPDF(data []byte) *Extraction {
	ex := &Extraction{}
	e.pdfImages(data, ex)
	e.pdfTables(data, ex)
	return ex
}

// FromImage wraps a standalone image file as a single-asset extraction.
// A file that does not decode is a document failure rather than a skip.
func (e *Extractor) FromImage(data []byte, filename string) (*Extraction, error) {
	info, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	ex := &Extraction{}
	if reason := e.filter.Check(info); reason != "" {
		ex.Skips = append(ex.Skips, Skip{Kind: "image", Ref: filename, Reason: reason})
		return ex, nil
	}

	ft := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ft == "jpeg" {
		ft = "jpg"
	}
	ex.Images = append(ex.Images, Image{
		ID:       uuid.New().String(),
		Page:     1,
		FileType: ft,
		Data:     data,
		Info:     info,
	})
	return ex, nil
}

// FromCSV wraps parsed CSV records as a single table asset.
func (e *Extractor) FromCSV(records [][]string) *Extraction {
	ex := &Extraction{}
	if len(records) == 0 {
		return ex
	}
	ex.Tables = append(ex.Tables, Table{
		ID:   uuid.New().String(),
		Page: 1,
		Rows: normalizeRows(records),
	})
	return ex
}

// rawImage is an extracted image before dedup and filtering.
type rawImage struct {
	page     int
	objNr    int
	fileType string
	data     []byte
}

func (e *Extractor) pdfImages(data []byte, ex *Extraction) {
	pages, err := pdfapi.ExtractImagesRaw(bytes.NewReader(data), nil, e.conf)
	if err != nil {
		ex.Skips = append(ex.Skips, Skip{Kind: "image", Ref: "document", Reason: fmt.Sprintf("extract images: %v", err)})
		return
	}

	var raws []rawImage
	for _, pageImages := range pages {
		// Map iteration order is random; sort by object number so
		// ordinals stay stable across runs.
		objNrs := make([]int, 0, len(pageImages))
		for nr := range pageImages {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			img := pageImages[nr]
			raw, err := io.ReadAll(img)
			if err != nil {
				ex.Skips = append(ex.Skips, Skip{
					Kind:   "image",
					Ref:    fmt.Sprintf("page %d object %d", img.PageNr, nr),
					Reason: fmt.Sprintf("read image: %v", err),
				})
				continue
			}
			raws = append(raws, rawImage{page: img.PageNr, objNr: nr, fileType: img.FileType, data: raw})
		}
	}

	e.collectImages(raws, ex)
}

// collectImages dedups and filters extracted images and assigns per-page
// ordinals. Repeats of the same bytes, typically a logo or divider on
// every page, are dropped without a skip record.
func (e *Extractor) collectImages(raws []rawImage, ex *Extraction) {
	seen := make(map[[sha256.Size]byte]bool)
	ordinals := make(map[int]int)

	for _, r := range raws {
		sum := sha256.Sum256(r.data)
		if seen[sum] {
			continue
		}
		seen[sum] = true

		ref := fmt.Sprintf("page %d object %d", r.page, r.objNr)
		info, err := Decode(r.data)
		if err != nil {
			ex.Skips = append(ex.Skips, Skip{Kind: "image", Ref: ref, Reason: fmt.Sprintf("decode image: %v", err)})
			continue
		}
		if reason := e.filter.Check(info); reason != "" {
			ex.Skips = append(ex.Skips, Skip{Kind: "image", Ref: ref, Reason: reason})
			continue
		}

		ord := ordinals[r.page]
		ordinals[r.page] = ord + 1
		ex.Images = append(ex.Images, Image{
			ID:       uuid.New().String(),
			Page:     r.page,
			Ordinal:  ord,
			FileType: r.fileType,
			Data:     r.data,
			Info:     info,
		})
	}
}

func (e *Extractor) pdfTables(data []byte, ex *Extraction) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		ex.Skips = append(ex.Skips, Skip{Kind: "table", Ref: "document", Reason: fmt.Sprintf("open pdf: %v", err)})
		return
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		tables, err := e.detector.FromPage(page, i)
		if err != nil {
			ex.Skips = append(ex.Skips, Skip{Kind: "table", Ref: fmt.Sprintf("page %d", i), Reason: err.Error()})
			continue
		}
		for ord := range tables {
			tables[ord].ID = uuid.New().String()
			tables[ord].Ordinal = ord
			ex.Tables = append(ex.Tables, tables[ord])
		}
	}
}
