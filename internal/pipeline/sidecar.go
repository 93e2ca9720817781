package pipeline

// ImageSidecar is the JSON metadata written next to each uploaded image
// asset. Reindexing reads these back to rebuild image documents without
// re-parsing the source file.
type ImageSidecar struct {
	ID           string `json:"id"`
	OriginalFile string `json:"original_file"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Description  string `json:"description"`
	S3Path       string `json:"s3_path"`
	PageNumber   int    `json:"page_number"`
	ImageIndex   int    `json:"image_index"`
}

// TableSidecar is the JSON metadata written next to each extracted
// table CSV.
type TableSidecar struct {
	ID           string `json:"id"`
	OriginalFile string `json:"original_file"`
	Rows         int    `json:"rows"`
	Columns      int    `json:"columns"`
	Description  string `json:"description"`
	S3Path       string `json:"s3_path"`
	PageNumber   int    `json:"page_number"`
	TableIndex   int    `json:"table_index"`
}
