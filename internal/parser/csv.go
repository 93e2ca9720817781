package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser handles CSV files. The first row is treated as headers and
// every data row is rendered as "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{Title: trimExt(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	headers := records[0]
	var text strings.Builder
	text.WriteString("Headers: " + strings.Join(headers, ", "))
	for _, row := range records[1:] {
		text.WriteString("\n")
		for j, cell := range row {
			if j > 0 {
				text.WriteString(", ")
			}
			if j < len(headers) {
				text.WriteString(headers[j] + ": " + cell)
			} else {
				text.WriteString(cell)
			}
		}
	}

	doc.Pages = []Page{{Number: 1, Text: text.String()}}
	return doc, nil
}

// ReadCSV decodes all records, tolerating ragged rows and lazy quoting.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}
