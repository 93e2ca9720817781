package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Blob store (S3-compatible).
	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	// Index store.
	OpenSearchURL      string
	OpenSearchUsername string
	OpenSearchPassword string
	IndexName          string
	IndexTimeout       time.Duration
	TextDim            int
	ImageDim           int
	MultimodalDim      int

	// Grants store.
	GrantsDSN string

	// Models.
	DescribeModel      string
	DescribeEndpoint   string
	DescribeAPIKey     string
	EmbedModel         string
	EmbedEndpoint      string
	EmbedAPIKey        string
	MultimodalModel    string
	MultimodalEndpoint string
	RerankModel        string
	RerankEndpoint     string
	RerankAPIKey       string
	AnswerModel        string
	ModelTimeout       time.Duration
	ModelRateLimit     float64

	// Chunking.
	ChunkSize    int
	ChunkOverlap int

	// Asset filters.
	ImageMinDim   int
	BlankRatio    float64
	TableMinRows  int
	TableMinCols  int

	// HTTP API.
	APIAddr      string
	APIAuthToken string

	// Worker pool.
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration

	// Upload limits.
	MaxUploadBytes int64
}

// Load builds the configuration from three layers: built-in defaults, the
// TOML settings file, and environment variables (highest precedence).
// A .env file in the working directory is read best-effort first.
func Load() Config {
	_ = godotenv.Load()

	settings, err := OpenSettings(DefaultSettingsPath())
	if err != nil {
		settings = nil
	}
	return loadFrom(settings)
}

// LoadWith builds the configuration over an explicit settings store.
func LoadWith(settings *Settings) Config {
	_ = godotenv.Load()
	return loadFrom(settings)
}

func loadFrom(s *Settings) Config {
	src := source{settings: s}

	cfg := Config{
		BlobEndpoint:  src.str("BLOB_ENDPOINT", "blob.endpoint", "localhost:9000"),
		BlobAccessKey: src.str("BLOB_ACCESS_KEY", "blob.access_key", ""),
		BlobSecretKey: src.str("BLOB_SECRET_KEY", "blob.secret_key", ""),
		BlobBucket:    src.str("BLOB_BUCKET", "blob.bucket", "docsift"),
		BlobUseSSL:    src.boolean("BLOB_USE_SSL", "blob.use_ssl", false),

		OpenSearchURL:      src.str("OPENSEARCH_URL", "opensearch.url", "http://localhost:9200"),
		OpenSearchUsername: src.str("OPENSEARCH_USERNAME", "opensearch.username", ""),
		OpenSearchPassword: src.str("OPENSEARCH_PASSWORD", "opensearch.password", ""),
		IndexName:          src.str("OPENSEARCH_INDEX", "opensearch.index", "multimodal_index"),
		IndexTimeout:       src.duration("OPENSEARCH_TIMEOUT", "opensearch.timeout", 300*time.Second),
		TextDim:            src.integer("TEXT_EMBED_DIM", "opensearch.text_dim", 1536),
		ImageDim:           src.integer("IMAGE_EMBED_DIM", "opensearch.image_dim", 1024),
		MultimodalDim:      src.integer("MULTIMODAL_EMBED_DIM", "opensearch.multimodal_dim", 1536),

		GrantsDSN: src.str("GRANTS_DSN", "grants.dsn", "postgres://localhost:5432/docsift"),

		DescribeModel:      src.str("DESCRIBE_MODEL", "models.describe", "claude-3-haiku-20240307"),
		DescribeEndpoint:   src.str("DESCRIBE_ENDPOINT", "models.describe_endpoint", "https://api.anthropic.com"),
		DescribeAPIKey:     src.str("DESCRIBE_API_KEY", "models.describe_api_key", ""),
		EmbedModel:         src.str("EMBED_MODEL", "models.embed", "nomic-embed-text"),
		EmbedEndpoint:      src.str("EMBED_ENDPOINT", "models.embed_endpoint", "http://localhost:11434"),
		EmbedAPIKey:        src.str("EMBED_API_KEY", "models.embed_api_key", ""),
		MultimodalModel:    src.str("MULTIMODAL_MODEL", "models.multimodal", "titan-embed-image-v1"),
		MultimodalEndpoint: src.str("MULTIMODAL_ENDPOINT", "models.multimodal_endpoint", "http://localhost:11434"),
		RerankModel:        src.str("RERANK_MODEL", "models.rerank", "rerank-v3"),
		RerankEndpoint:     src.str("RERANK_ENDPOINT", "models.rerank_endpoint", ""),
		RerankAPIKey:       src.str("RERANK_API_KEY", "models.rerank_api_key", ""),
		AnswerModel:        src.str("ANSWER_MODEL", "models.answer", "claude-3-haiku-20240307"),
		ModelTimeout:       src.duration("MODEL_TIMEOUT", "models.timeout", 120*time.Second),
		ModelRateLimit:     src.float("MODEL_RATE_LIMIT", "models.rate_limit", 5.0),

		ChunkSize:    src.integer("CHUNK_SIZE", "chunk.size", 1000),
		ChunkOverlap: src.integer("CHUNK_OVERLAP", "chunk.overlap", 200),

		ImageMinDim:  src.integer("IMAGE_MIN_DIM", "filters.image_min_dim", 50),
		BlankRatio:   src.float("BLANK_RATIO", "filters.blank_ratio", 0.05),
		TableMinRows: src.integer("TABLE_MIN_ROWS", "filters.table_min_rows", 2),
		TableMinCols: src.integer("TABLE_MIN_COLS", "filters.table_min_cols", 2),

		APIAddr:      src.str("API_ADDR", "api.addr", ":8080"),
		APIAuthToken: src.str("API_AUTH_TOKEN", "api.auth_token", ""),

		WorkerCount:  src.integer("WORKER_COUNT", "workers.count", 4),
		MaxQueueSize: src.integer("MAX_QUEUE_SIZE", "workers.queue_size", 100),
		JobTTL:       src.duration("JOB_TTL", "workers.job_ttl", 1*time.Hour),

		MaxUploadBytes: src.int64("MAX_UPLOAD_BYTES", "api.max_upload_bytes", 52428800), // 50MB
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.ImageMinDim <= 0 {
		cfg.ImageMinDim = 50
	}
	if cfg.BlankRatio <= 0 || cfg.BlankRatio >= 1 {
		cfg.BlankRatio = 0.05
	}
	if cfg.TableMinRows < 1 {
		cfg.TableMinRows = 2
	}
	if cfg.TableMinCols < 1 {
		cfg.TableMinCols = 2
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = 300 * time.Second
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 120 * time.Second
	}
	if cfg.ModelRateLimit <= 0 {
		cfg.ModelRateLimit = 5.0
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.TextDim <= 0 {
		cfg.TextDim = 1536
	}
	if cfg.ImageDim <= 0 {
		cfg.ImageDim = 1024
	}
	if cfg.MultimodalDim <= 0 {
		cfg.MultimodalDim = 1536
	}

	return cfg
}

func (c Config) Validate() error {
	if c.BlobAccessKey == "" || c.BlobSecretKey == "" {
		return fmt.Errorf("BLOB_ACCESS_KEY and BLOB_SECRET_KEY are required")
	}
	if c.BlobBucket == "" {
		return fmt.Errorf("BLOB_BUCKET is required")
	}
	if c.OpenSearchURL == "" {
		return fmt.Errorf("OPENSEARCH_URL is required")
	}
	if c.IndexName == "" {
		return fmt.Errorf("OPENSEARCH_INDEX is required")
	}
	if c.DescribeModel == "" {
		return fmt.Errorf("DESCRIBE_MODEL is required")
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("EMBED_MODEL is required")
	}
	return nil
}

// Display returns the effective configuration as nested tables for
// show-config. Secrets are redacted.
func (c Config) Display() map[string]any {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "(set)"
	}
	return map[string]any{
		"blob": map[string]any{
			"endpoint":   c.BlobEndpoint,
			"bucket":     c.BlobBucket,
			"use_ssl":    c.BlobUseSSL,
			"access_key": mask(c.BlobAccessKey),
			"secret_key": mask(c.BlobSecretKey),
		},
		"opensearch": map[string]any{
			"url":            c.OpenSearchURL,
			"index":          c.IndexName,
			"timeout":        c.IndexTimeout.String(),
			"username":       c.OpenSearchUsername,
			"password":       mask(c.OpenSearchPassword),
			"text_dim":       c.TextDim,
			"image_dim":      c.ImageDim,
			"multimodal_dim": c.MultimodalDim,
		},
		"grants": map[string]any{
			"dsn": mask(c.GrantsDSN),
		},
		"models": map[string]any{
			"describe":            c.DescribeModel,
			"describe_endpoint":   c.DescribeEndpoint,
			"describe_api_key":    mask(c.DescribeAPIKey),
			"embed":               c.EmbedModel,
			"embed_endpoint":      c.EmbedEndpoint,
			"multimodal":          c.MultimodalModel,
			"multimodal_endpoint": c.MultimodalEndpoint,
			"rerank":              c.RerankModel,
			"rerank_endpoint":     c.RerankEndpoint,
			"answer":              c.AnswerModel,
			"timeout":             c.ModelTimeout.String(),
			"rate_limit":          c.ModelRateLimit,
		},
		"chunk": map[string]any{
			"size":    c.ChunkSize,
			"overlap": c.ChunkOverlap,
		},
		"filters": map[string]any{
			"image_min_dim":  c.ImageMinDim,
			"blank_ratio":    c.BlankRatio,
			"table_min_rows": c.TableMinRows,
			"table_min_cols": c.TableMinCols,
		},
		"api": map[string]any{
			"addr":             c.APIAddr,
			"auth_token":       mask(c.APIAuthToken),
			"max_upload_bytes": c.MaxUploadBytes,
		},
		"workers": map[string]any{
			"count":      c.WorkerCount,
			"queue_size": c.MaxQueueSize,
			"job_ttl":    c.JobTTL.String(),
		},
	}
}

// source resolves a value from env first, then the settings file, then the
// built-in fallback.
type source struct {
	settings *Settings
}

func (s source) str(envKey, fileKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if s.settings != nil {
		if v := s.settings.GetString(fileKey); v != "" {
			return v
		}
	}
	return fallback
}

func (s source) integer(envKey, fileKey string, fallback int) int {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if s.settings != nil {
		if n, ok := s.settings.GetInt(fileKey); ok {
			return n
		}
	}
	return fallback
}

func (s source) int64(envKey, fileKey string, fallback int64) int64 {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if s.settings != nil {
		if n, ok := s.settings.GetInt(fileKey); ok {
			return int64(n)
		}
	}
	return fallback
}

func (s source) float(envKey, fileKey string, fallback float64) float64 {
	if v := os.Getenv(envKey); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if s.settings != nil {
		if f, ok := s.settings.GetFloat(fileKey); ok {
			return f
		}
	}
	return fallback
}

func (s source) boolean(envKey, fileKey string, fallback bool) bool {
	if v := os.Getenv(envKey); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if s.settings != nil {
		if b, ok := s.settings.GetBool(fileKey); ok {
			return b
		}
	}
	return fallback
}

func (s source) duration(envKey, fileKey string, fallback time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if s.settings != nil {
		if v := s.settings.GetString(fileKey); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				return d
			}
		}
	}
	return fallback
}
