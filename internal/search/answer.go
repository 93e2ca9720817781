package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docsift/docsift/internal/chunker"
	"github.com/docsift/docsift/internal/index"
)

// defaultAnswerTokens bounds how much retrieved context goes into the
// generation prompt.
const defaultAnswerTokens = 3000

const answerPreamble = "Answer the question using only the context below. " +
	"If the context does not contain the answer, say so instead of guessing.\n\nContext:\n"

const noContextAnswer = "No relevant documents were found for this question."

// Reference points an answer at one supporting chunk.
type Reference struct {
	Source  string  `json:"source"`
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Answer is a synthesized response plus the chunks it drew on.
type Answer struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}

// Answer searches, folds the top text and image hits into a prompt
// within the token budget, and asks the generation model. Hits that did
// not fit the budget are not listed as references.
func (e *Engine) Answer(ctx context.Context, q Query) (*Answer, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("no generation model configured")
	}

	result, err := e.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	hits := make([]index.Hit, 0, len(result.Texts)+len(result.Images))
	hits = append(hits, result.Texts...)
	hits = append(hits, result.Images...)
	if len(hits) == 0 {
		return &Answer{Answer: noContextAnswer, References: []Reference{}}, nil
	}

	prompt, used := buildAnswerPrompt(q.Text, hits, e.tokens, e.answerTokens)
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	refs := make([]Reference, len(used))
	for i, h := range used {
		refs[i] = Reference{Source: h.Source, ChunkID: h.ChunkID, Score: h.Score}
	}
	return &Answer{Answer: text, References: refs}, nil
}

// buildAnswerPrompt packs hits into the context section best-first
// until the token budget runs out, returning the prompt and the hits
// that made it in. At least one hit always goes in, truncated if it
// alone overflows the budget.
func buildAnswerPrompt(query string, hits []index.Hit, tokens *chunker.TokenCounter, budget int) (string, []index.Hit) {
	var context strings.Builder
	used := make([]index.Hit, 0, len(hits))
	remaining := budget

	for _, h := range hits {
		block := fmt.Sprintf("[%s] %s\n\n", h.Source, h.Content)
		cost := tokens.Count(block)
		if cost > remaining {
			continue
		}
		context.WriteString(block)
		remaining -= cost
		used = append(used, h)
	}

	if len(used) == 0 {
		h := hits[0]
		content := truncateRunes(h.Content, budget*4)
		context.WriteString(fmt.Sprintf("[%s] %s\n\n", h.Source, content))
		used = append(used, h)
	}

	prompt := fmt.Sprintf("%s%s\nQuestion: %s\n\nAnswer:", answerPreamble, context.String(), query)
	return prompt, used
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
