package index

import "fmt"

// Validate checks a document before an upsert. Every populated embedding
// must match its declared dimension, and at least one embedding must be
// present, or the vector fields would silently degrade search for the
// whole index.
func Validate(doc *Document, dims Dims) error {
	if doc == nil {
		return fmt.Errorf("nil document")
	}
	if doc.ChunkID == "" {
		return fmt.Errorf("document missing chunk_id")
	}
	if doc.DocumentID == "" {
		return fmt.Errorf("document %s missing document_id", doc.ChunkID)
	}
	if doc.Source == "" {
		return fmt.Errorf("document %s missing source", doc.ChunkID)
	}
	if doc.DocumentType != TypeText && doc.DocumentType != TypeImage {
		return fmt.Errorf("document %s has unknown document_type %q", doc.ChunkID, doc.DocumentType)
	}

	embeddings := 0
	if n := len(doc.TextEmbedding); n > 0 {
		if n != dims.Text {
			return fmt.Errorf("document %s text_embedding has %d dimensions, index expects %d", doc.ChunkID, n, dims.Text)
		}
		embeddings++
	}
	if n := len(doc.ImageEmbedding); n > 0 {
		if n != dims.Image {
			return fmt.Errorf("document %s image_embedding has %d dimensions, index expects %d", doc.ChunkID, n, dims.Image)
		}
		embeddings++
	}
	if n := len(doc.MultimodalEmbedding); n > 0 {
		if n != dims.Multimodal {
			return fmt.Errorf("document %s multimodal_embedding has %d dimensions, index expects %d", doc.ChunkID, n, dims.Multimodal)
		}
		embeddings++
	}
	if embeddings == 0 {
		return fmt.Errorf("document %s has no embeddings", doc.ChunkID)
	}
	return nil
}
