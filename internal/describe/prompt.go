package describe

import "strings"

// ImagePrompt is sent with every extracted image.
const ImagePrompt = "Describe this image's content, including main objects, scene, and any visible text. Be concise and factual."

// TablePrompt precedes the rendered rows of an extracted table.
const TablePrompt = "Describe this table's content and structure. Summarize what the columns represent and any notable values. Be concise."

// BuildTablePrompt appends rendered table rows to the table prompt.
func BuildTablePrompt(tableText string) string {
	var sb strings.Builder
	sb.WriteString(TablePrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(tableText)
	return sb.String()
}
