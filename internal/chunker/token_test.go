package chunker

import "testing"

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"x", 1},
		{"one two three four five six seven eight nine ten", 13},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestTokenCounter_Count(t *testing.T) {
	c := NewTokenCounter()

	if got := c.Count(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}

	short := c.Count("one sentence")
	long := c.Count("a much longer passage of text that should always cost more tokens than two words")
	if short <= 0 {
		t.Errorf("expected positive count for short text, got %d", short)
	}
	if long <= short {
		t.Errorf("expected longer text to cost more tokens, got %d <= %d", long, short)
	}
}
