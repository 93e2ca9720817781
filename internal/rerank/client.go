// Package rerank scores passages against a query with a cross-encoder
// model. The service speaks the common rerank API shape: query plus
// passages in, index-addressed relevance scores out. Callers treat
// rerank as advisory and keep their original ordering when it fails.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Passage is one candidate to score.
type Passage struct {
	ID   string
	Text string
}

// Score is a passage's relevance to the query, addressed by passage ID.
type Score struct {
	ID    string
	Score float64
}

// Client communicates with a rerank HTTP service.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores the passages against the query. The service addresses
// results by input position; the client converts them back to passage
// IDs so callers never handle indices.
func (c *Client) Rerank(ctx context.Context, query string, passages []Passage) ([]Score, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = p.Text
	}
	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: docs,
		TopN:      len(passages),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]Score, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, fmt.Errorf("rerank returned index %d for %d passages", r.Index, len(passages))
		}
		scores = append(scores, Score{ID: passages[r.Index].ID, Score: r.RelevanceScore})
	}
	return scores, nil
}

// Model returns the configured rerank model name.
func (c *Client) Model() string {
	return c.model
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
