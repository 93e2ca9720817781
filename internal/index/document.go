// Package index stores and searches chunk and image documents in
// OpenSearch. One index holds both document types, distinguished by the
// document_type field.
package index

// Document types stored in the index.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// ImageInfo locates and sizes an indexed image asset.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	S3Path string `json:"s3_path"`
}

// TableInfo locates and shapes an extracted table asset.
type TableInfo struct {
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	S3Path  string `json:"s3_path"`
}

// Metadata carries non-searchable document context.
type Metadata struct {
	Filename   string     `json:"filename,omitempty"`
	Filepath   string     `json:"filepath,omitempty"`
	ChunkIndex int        `json:"chunk_index"`
	CreatedAt  string     `json:"created_at,omitempty"`
	FileType   string     `json:"file_type,omitempty"`
	Image      *ImageInfo `json:"image_info,omitempty"`
	Table      *TableInfo `json:"table_info,omitempty"`
}

// Document is one indexed unit: a text chunk or a described image.
type Document struct {
	ChunkID             string    `json:"chunk_id"`
	Content             string    `json:"content"`
	DocumentID          string    `json:"document_id"`
	DocumentType        string    `json:"document_type"`
	Source              string    `json:"source"`
	Metadata            Metadata  `json:"metadata"`
	TextEmbedding       []float32 `json:"text_embedding,omitempty"`
	ImageEmbedding      []float32 `json:"image_embedding,omitempty"`
	MultimodalEmbedding []float32 `json:"multimodal_embedding,omitempty"`
}
