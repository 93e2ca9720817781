package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func (c *Client) ollamaEmbed(ctx context.Context, text string) ([]float32, error) {
	respBody, err := c.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	var apiResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", apiResp.Error)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return apiResp.Embedding, nil
}

type openaiEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) openaiEmbed(ctx context.Context, text string) ([]float32, error) {
	respBody, err := c.post(ctx, "/v1/embeddings", openaiEmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	var apiResp openaiEmbedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Data) == 0 || len(apiResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return apiResp.Data[0].Embedding, nil
}

type titanEmbedRequest struct {
	InputText  string `json:"inputText,omitempty"`
	InputImage string `json:"inputImage,omitempty"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Message   string    `json:"message,omitempty"`
}

func (c *Client) titanEmbed(ctx context.Context, text string, image []byte) ([]float32, error) {
	req := titanEmbedRequest{InputText: text}
	if len(image) > 0 {
		req.InputImage = base64.StdEncoding.EncodeToString(image)
	}

	respBody, err := c.post(ctx, "/model/"+c.model+"/invoke", req)
	if err != nil {
		return nil, err
	}

	var apiResp titanEmbedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embedding) == 0 {
		if apiResp.Message != "" {
			return nil, fmt.Errorf("titan error: %s", apiResp.Message)
		}
		return nil, fmt.Errorf("empty embedding")
	}
	return apiResp.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
