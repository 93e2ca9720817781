package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files, extracting plain text page by page.
type PDFParser struct{}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docsift-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	doc := &Document{Title: trimExt(filename)}

	// Unreadable or image-only pages keep their slot with empty text so
	// extracted assets anchor to the right page number.
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		pg := Page{Number: i}
		page := reader.Page(i)
		if !page.V.IsNull() {
			if text, err := page.GetPlainText(nil); err == nil {
				pg.Text = strings.TrimSpace(text)
			}
		}
		doc.Pages = append(doc.Pages, pg)
	}

	return doc, nil
}
