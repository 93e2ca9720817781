// Package assemble rebuilds a parsed document into one markdown blob,
// weaving described assets back into the pages they came from so their
// descriptions land in the same chunks as the surrounding text.
package assemble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docsift/docsift/internal/parser"
)

// Asset is a described artifact anchored to a page of the source
// document. Location is the s3:// URI of the uploaded asset data.
type Asset struct {
	Page        int
	Ordinal     int
	Description string
	Location    string
}

// Reconstruct merges page text with asset blocks. For each page in
// order: the page's text, then its figures in ordinal order, then its
// tables in ordinal order. Pages with neither text nor assets are
// dropped.
func Reconstruct(doc *parser.Document, figures, tables []Asset) string {
	figuresByPage := groupByPage(figures)
	tablesByPage := groupByPage(tables)

	var b strings.Builder
	for _, page := range doc.Pages {
		blocks := make([]string, 0, 4)
		if text := strings.TrimSpace(page.Text); text != "" {
			blocks = append(blocks, text)
		}
		for _, f := range figuresByPage[page.Number] {
			blocks = append(blocks, FigureBlock(f.Description, f.Location))
		}
		for _, tb := range tablesByPage[page.Number] {
			blocks = append(blocks, TableBlock(tb.Description, tb.Location))
		}
		if len(blocks) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.Join(blocks, "\n\n"))
	}
	return b.String()
}

// FigureBlock renders one image reference with its description as the
// alt text.
func FigureBlock(description, location string) string {
	return fmt.Sprintf("<figure>![%s](%s)</figure>", description, location)
}

// TableBlock renders one table reference with its description as the
// caption. The cell points at the raw CSV rather than inlining it.
func TableBlock(description, location string) string {
	return fmt.Sprintf("<table><caption>%s</caption><tr><td>table data location: %s</td></tr></table>", description, location)
}

func groupByPage(assets []Asset) map[int][]Asset {
	byPage := make(map[int][]Asset)
	for _, a := range assets {
		byPage[a.Page] = append(byPage[a.Page], a)
	}
	for _, group := range byPage {
		sort.Slice(group, func(i, j int) bool { return group[i].Ordinal < group[j].Ordinal })
	}
	return byPage
}
