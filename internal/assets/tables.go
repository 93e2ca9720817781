package assets

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// minCellGap is the smallest horizontal gap, in points, treated as a cell
// boundary regardless of font size.
const minCellGap = 6.0

// Table is a normalized row-major grid detected in a document.
type Table struct {
	ID      string
	Page    int
	Ordinal int
	Rows    [][]string
}

// CSV renders the grid with standard quoting.
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Text renders rows as pipe-separated lines for description prompts.
func (t *Table) Text() string {
	lines := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		lines[i] = strings.Join(row, " | ")
	}
	return strings.Join(lines, "\n")
}

// Detector finds tabular regions in PDF text. A table is a run of
// consecutive rows that each cluster into enough cells.
type Detector struct {
	MinRows int
	MinCols int
}

// DefaultDetector returns the standard detection thresholds.
func DefaultDetector() Detector {
	return Detector{MinRows: 2, MinCols: 2}
}

// FromPage detects tables in one PDF page.
func (d Detector) FromPage(page pdflib.Page, pageNum int) ([]Table, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("read text rows: %w", err)
	}

	lines := make([][]pdflib.Text, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.Content)
	}
	return d.detect(lines, pageNum), nil
}

func (d Detector) detect(lines [][]pdflib.Text, pageNum int) []Table {
	var tables []Table
	var run [][]string

	flush := func() {
		if len(run) >= d.MinRows {
			tables = append(tables, Table{Page: pageNum, Rows: normalizeRows(run)})
		}
		run = nil
	}

	for _, line := range lines {
		cells := clusterCells(line)
		if len(cells) >= d.MinCols {
			run = append(run, cells)
			continue
		}
		flush()
	}
	flush()

	return tables
}

// clusterCells merges positioned text runs into cells, starting a new cell
// whenever the horizontal gap exceeds one and a half times the font size.
func clusterCells(texts []pdflib.Text) []string {
	if len(texts) == 0 {
		return nil
	}

	var cells []string
	var current strings.Builder
	lastEnd := texts[0].X

	for i, t := range texts {
		gap := t.FontSize * 1.5
		if gap < minCellGap {
			gap = minCellGap
		}
		if i > 0 && t.X-lastEnd > gap {
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(t.S)
		end := t.X + t.W
		if end > lastEnd {
			lastEnd = end
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		cells = append(cells, s)
	}

	return cells
}

// normalizeRows pads ragged rows with empty cells to the widest row.
func normalizeRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return out
}
