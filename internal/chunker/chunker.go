// Package chunker splits reconstructed document text into overlapping
// segments for embedding. Splitting is deterministic: the same text and
// configuration always produce the same chunk sequence.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls chunking behavior. Sizes are measured in bytes of UTF-8
// text; cuts never land inside a rune.
type Config struct {
	ChunkSize    int // Target maximum chunk size.
	ChunkOverlap int // Tail of each chunk carried into the next.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Chunk is one bounded text span.
type Chunk struct {
	Text  string
	Index int
}

// Split breaks text into overlapping chunks, preferring paragraph breaks,
// then sentence ends, then whitespace, falling back to a hard cut only when
// a single word exceeds the chunk size. A chunk may exceed ChunkSize by at
// most ChunkOverlap plus a separator when the carried tail cannot be
// flushed on its own.
func Split(text string, cfg Config) []Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	parts := splitText(text, cfg)
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{Text: p, Index: i})
	}
	return chunks
}

// splitText accumulates paragraphs up to the chunk size, descending into
// sentence splitting for paragraphs that cannot fit whole.
func splitText(text string, cfg Config) []string {
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	carried := 0

	for _, para := range paragraphs {
		// A single paragraph above the target descends a level.
		if len(para) > cfg.ChunkSize {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
				carried = 0
			}
			result = append(result, splitBySentences(para, cfg)...)
			continue
		}

		if current.Len() > carried && current.Len()+2+len(para) > cfg.ChunkSize {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), cfg.ChunkOverlap)
			current.Reset()
			current.WriteString(overlap)
			carried = len(overlap)
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	if current.Len() > carried {
		result = append(result, current.String())
	}
	return result
}

// splitBySentences accumulates sentences of an oversized paragraph,
// descending into word splitting for sentences that cannot fit whole.
func splitBySentences(text string, cfg Config) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	carried := 0

	for _, sent := range sentences {
		if len(sent) > cfg.ChunkSize {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
				carried = 0
			}
			result = append(result, splitByWords(sent, cfg)...)
			continue
		}

		if current.Len() > carried && current.Len()+1+len(sent) > cfg.ChunkSize {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), cfg.ChunkOverlap)
			current.Reset()
			current.WriteString(overlap)
			carried = len(overlap)
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}

	if current.Len() > carried {
		result = append(result, current.String())
	}
	return result
}

// splitByWords accumulates whitespace-separated words, hard-cutting any
// single word longer than the chunk size.
func splitByWords(text string, cfg Config) []string {
	words := strings.Fields(text)

	var result []string
	var current strings.Builder
	carried := 0

	for _, word := range words {
		if len(word) > cfg.ChunkSize {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
				carried = 0
			}
			result = append(result, hardCut(word, cfg)...)
			continue
		}

		if current.Len() > carried && current.Len()+1+len(word) > cfg.ChunkSize {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), cfg.ChunkOverlap)
			current.Reset()
			current.WriteString(overlap)
			carried = len(overlap)
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > carried {
		result = append(result, current.String())
	}
	return result
}

// hardCut slices text into ChunkSize windows stepping by size minus
// overlap, snapping both edges to rune boundaries.
func hardCut(text string, cfg Config) []string {
	step := cfg.ChunkSize - cfg.ChunkOverlap
	if step <= 0 {
		step = cfg.ChunkSize
	}

	var parts []string
	for start := 0; start < len(text); {
		end := start + cfg.ChunkSize
		if end >= len(text) {
			parts = append(parts, text[start:])
			break
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		parts = append(parts, text[start:end])

		next := start + step
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return parts
}

// splitByParagraphs splits on blank lines, dropping empty segments.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences does basic sentence splitting on terminal punctuation
// followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapTail returns at most n trailing bytes of text, advanced to the
// next word boundary so the carried tail starts on a whole word.
func overlapTail(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return ""
	}
	start := len(text) - n
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]
	if i := strings.IndexAny(tail, " \n"); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	}
	return tail
}
