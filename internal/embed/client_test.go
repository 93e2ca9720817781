package embed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseFamily(t *testing.T) {
	tests := []struct {
		model   string
		want    Family
		wantErr bool
	}{
		{"nomic-embed-text", FamilyOllama, false},
		{"mxbai-embed-large", FamilyOllama, false},
		{"text-embedding-3-small", FamilyOpenAI, false},
		{"text-embedding-ada-002", FamilyOpenAI, false},
		{"amazon.titan-embed-image-v1", FamilyTitan, false},
		{"titan-embed-image-v1", FamilyTitan, false},
		{"word2vec", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFamily(tt.model)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFamily(%q): expected error, got %v", tt.model, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFamily(%q): unexpected error: %v", tt.model, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFamily(%q): expected %v, got %v", tt.model, tt.want, got)
		}
	}
}

func TestNewClient_TitanRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Options{Model: "titan-embed-image-v1"}); err == nil {
		t.Fatal("expected error without endpoint, got nil")
	}
}

func TestEmbed_OllamaCodec(t *testing.T) {
	var gotReq ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/embeddings" {
			t.Errorf("expected POST /api/embeddings, got %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{Model: "nomic-embed-text", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	vec, err := c.Embed(context.Background(), "some chunk text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("expected 3-dim vector starting 0.1, got %v", vec)
	}
	if gotReq.Model != "nomic-embed-text" || gotReq.Prompt != "some chunk text" {
		t.Errorf("unexpected request: %+v", gotReq)
	}
}

func TestEmbed_OpenAICodec(t *testing.T) {
	var gotReq openaiEmbedRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.5,0.6]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{Model: "text-embedding-3-small", BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	vec, err := c.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[1] != 0.6 {
		t.Errorf("expected 2-dim vector, got %v", vec)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Input != "query" {
		t.Errorf("expected input field, got %+v", gotReq)
	}
}

func TestEmbedMultimodal_TitanCodec(t *testing.T) {
	image := []byte("image bytes")

	var gotReq titanEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/titan-embed-image-v1/invoke" {
			t.Errorf("expected invoke path with model, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"embedding":[1,2,3,4]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{Model: "titan-embed-image-v1", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	vec, err := c.EmbedMultimodal(context.Background(), "a diagram", image)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("expected 4-dim vector, got %v", vec)
	}
	if gotReq.InputText != "a diagram" {
		t.Errorf("expected input text, got %q", gotReq.InputText)
	}
	if gotReq.InputImage != base64.StdEncoding.EncodeToString(image) {
		t.Error("expected base64 image in request")
	}
}

func TestEmbedMultimodal_RejectsTextOnlyModels(t *testing.T) {
	c, err := NewClient(Options{Model: "nomic-embed-text", BaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if _, err := c.EmbedMultimodal(context.Background(), "text", []byte("img")); err == nil {
		t.Fatal("expected error for text-only model, got nil")
	}
}

func TestEmbed_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(Options{Model: "nomic-embed-text", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}
}
