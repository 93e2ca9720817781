// Package parser converts source files into a page-oriented document model.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is parsed file content. Formats without native pages yield a
// single page; PDF pages keep their 1-based numbering so extracted assets
// anchor to the page they came from.
type Document struct {
	Title string
	Pages []Page
}

// Page is the text of one source page. Text may be empty for pages that
// carry only images.
type Page struct {
	Number int
	Text   string
}

// Text joins all page text in order.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// Kind groups file formats by how ingestion treats them.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF          // text plus embedded images and tables
	KindCSV          // text plus a whole-file table asset
	KindText         // text only
	KindImage        // a single standalone image asset
)

var kinds = map[string]Kind{
	".pdf":      KindPDF,
	".csv":      KindCSV,
	".txt":      KindText,
	".md":       KindText,
	".markdown": KindText,
	".html":     KindText,
	".htm":      KindText,
	".docx":     KindText,
	".png":      KindImage,
	".jpg":      KindImage,
	".jpeg":     KindImage,
	".gif":      KindImage,
	".bmp":      KindImage,
	".tif":      KindImage,
	".tiff":     KindImage,
	".webp":     KindImage,
}

// KindForFile classifies a filename by extension.
func KindForFile(filename string) Kind {
	return kinds[strings.ToLower(filepath.Ext(filename))]
}

// IsSupportedExtension checks if ingestion accepts a filename.
func IsSupportedExtension(filename string) bool {
	return KindForFile(filename) != KindUnknown
}

// ForFile returns the parser for a filename. Image files carry no text and
// have no parser.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("no parser for extension %q", ext)
	}
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func singlePage(filename, text string) *Document {
	doc := &Document{Title: trimExt(filename)}
	text = strings.TrimSpace(text)
	if text != "" {
		doc.Pages = []Page{{Number: 1, Text: text}}
	}
	return doc
}
