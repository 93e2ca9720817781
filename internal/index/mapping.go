package index

import (
	"encoding/json"
	"fmt"
)

// Dims declares the embedding dimensions the index enforces. Every
// populated vector on an indexed document must match its declared
// dimension exactly.
type Dims struct {
	Text       int
	Image      int
	Multimodal int
}

// DefaultDims matches the default embedding models.
func DefaultDims() Dims {
	return Dims{Text: 1536, Image: 1024, Multimodal: 1536}
}

// Mapping renders the index settings and field mappings as JSON. Vector
// fields use cosine similarity over HNSW.
func Mapping(d Dims) (string, error) {
	if d.Text <= 0 || d.Image <= 0 || d.Multimodal <= 0 {
		return "", fmt.Errorf("embedding dimensions must be positive, got %+v", d)
	}

	body := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"knn": true,
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"chunk_id":             map[string]any{"type": "keyword"},
				"content":              map[string]any{"type": "text"},
				"document_id":          map[string]any{"type": "keyword"},
				"document_type":        map[string]any{"type": "keyword"},
				"source":               map[string]any{"type": "keyword"},
				"metadata":             map[string]any{"type": "object"},
				"text_embedding":       vectorField(d.Text),
				"image_embedding":      vectorField(d.Image),
				"multimodal_embedding": vectorField(d.Multimodal),
			},
		},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal index mapping: %w", err)
	}
	return string(raw), nil
}

func vectorField(dimension int) map[string]any {
	return map[string]any{
		"type":      "knn_vector",
		"dimension": dimension,
		"method": map[string]any{
			"name":       "hnsw",
			"space_type": "cosinesimil",
			"engine":     "lucene",
		},
	}
}
