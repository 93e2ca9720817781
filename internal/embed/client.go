// Package embed turns text and images into dense vectors for index
// storage and query-time similarity search.
package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Family identifies the API dialect an embedding model name maps to.
type Family string

const (
	FamilyOllama Family = "ollama"
	FamilyOpenAI Family = "openai"
	FamilyTitan  Family = "titan"
)

var familyPrefixes = []struct {
	prefix string
	family Family
}{
	{"text-embedding", FamilyOpenAI},
	{"nomic-embed", FamilyOllama},
	{"mxbai-embed", FamilyOllama},
	{"snowflake-arctic-embed", FamilyOllama},
	{"all-minilm", FamilyOllama},
	{"bge", FamilyOllama},
	{"amazon.titan", FamilyTitan},
	{"titan", FamilyTitan},
}

// ParseFamily resolves an embedding model name to its API family.
func ParseFamily(model string) (Family, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	for _, fp := range familyPrefixes {
		if strings.HasPrefix(name, fp.prefix) {
			return fp.family, nil
		}
	}
	return "", fmt.Errorf("unknown embedding model %q", model)
}

// Options configures an embedding client.
type Options struct {
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls one embedding model. Build separate clients for text and
// multimodal models.
type Client struct {
	family     Family
	model      string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client, resolving the model family up front. Titan
// models need an explicit gateway endpoint.
func NewClient(opts Options) (*Client, error) {
	family, err := ParseFamily(opts.Model)
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		switch family {
		case FamilyOllama:
			baseURL = "http://localhost:11434"
		case FamilyOpenAI:
			baseURL = "https://api.openai.com"
		case FamilyTitan:
			return nil, fmt.Errorf("model %q needs an explicit endpoint", opts.Model)
		}
	}

	return &Client{
		family:     family,
		model:      opts.Model,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	switch c.family {
	case FamilyOllama:
		return c.ollamaEmbed(ctx, text)
	case FamilyOpenAI:
		return c.openaiEmbed(ctx, text)
	case FamilyTitan:
		return c.titanEmbed(ctx, text, nil)
	default:
		return nil, fmt.Errorf("unsupported embedding family %q", c.family)
	}
}

// EmbedMultimodal returns a joint embedding for text, an image, or
// both. Retrieval embeds query text alone into the same space the
// indexed images occupy.
func (c *Client) EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error) {
	if c.family != FamilyTitan {
		return nil, fmt.Errorf("model %q does not embed images", c.model)
	}
	return c.titanEmbed(ctx, text, image)
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
