package chunker

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text in model tokens. It uses the cl100k_base
// encoding when available and falls back to a word-based estimate, the
// encoder fetches its vocabulary on first use and may be unavailable
// offline.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens approximates a token count from words, roughly 1.33
// tokens per English word.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}
