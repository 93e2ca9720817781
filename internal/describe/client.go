// Package describe generates text descriptions of images and tables with a
// vision-capable model.
package describe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Options configures a description client.
type Options struct {
	Model     string
	BaseURL   string // default depends on the model family
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // calls per second across the whole client
}

// Client calls a vision model to describe assets. All calls share one
// token-bucket limiter so batch ingestion cannot flood the model API.
type Client struct {
	family     Family
	model      string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	stats      *Stats
}

// NewClient builds a client, resolving the model family up front.
func NewClient(opts Options) (*Client, error) {
	family, err := ParseFamily(opts.Model)
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	rps := opts.RateLimit
	if rps <= 0 {
		rps = 5
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		switch family {
		case FamilyAnthropic:
			baseURL = "https://api.anthropic.com"
		case FamilyOllama:
			baseURL = "http://localhost:11434"
		}
	}

	return &Client{
		family:     family,
		model:      opts.Model,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		stats:      NewStats(time.Hour),
	}, nil
}

// Describe generates a description for an image. Pass a nil image for
// text-only prompts.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	var text string
	var err error
	switch c.family {
	case FamilyAnthropic:
		text, err = c.anthropicGenerate(ctx, prompt, image)
	case FamilyOllama:
		text, err = c.ollamaGenerate(ctx, prompt, image)
	default:
		err = fmt.Errorf("unsupported model family %q", c.family)
	}
	if err == nil {
		c.stats.Record(time.Since(start).Milliseconds())
	}
	return text, err
}

// Generate produces text from a prompt alone, for table descriptions and
// answer composition.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Describe(ctx, prompt, nil)
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Stats returns a snapshot of recent call latencies.
func (c *Client) Stats() StatsSnapshot { return c.stats.Snapshot() }

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
