package assemble

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Outline is the heading structure of a reconstructed document.
type Outline struct {
	Title    string     `json:"title"`
	Sections []*Section `json:"sections,omitempty"`
}

// Section is one heading with its nested subsections.
type Section struct {
	Title    string     `json:"title"`
	Level    int        `json:"level"`
	Sections []*Section `json:"sections,omitempty"`
}

// BuildOutline walks the markdown heading hierarchy into a section
// tree. A heading nests under the nearest preceding heading of a lower
// level, so skipped levels still produce a sensible tree.
func BuildOutline(title string, source []byte) *Outline {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	outline := &Outline{Title: title}
	var stack []*Section

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		section := &Section{
			Title: string(n.Text(source)),
			Level: heading.Level,
		}
		for len(stack) > 0 && stack[len(stack)-1].Level >= heading.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			outline.Sections = append(outline.Sections, section)
		} else {
			parent := stack[len(stack)-1]
			parent.Sections = append(parent.Sections, section)
		}
		stack = append(stack, section)
		return ast.WalkSkipChildren, nil
	})

	return outline
}
