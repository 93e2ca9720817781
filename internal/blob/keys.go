package blob

import (
	"fmt"
	"path"
	"strings"
)

// Key layout inside the bucket. Source documents arrive under source/; the
// pipeline writes everything else.
const (
	SourcePrefix    = "source/"
	ProcessedPrefix = "processed/"
	ImagePrefix     = "images/"
	TablePrefix     = "tables/"
	ImageMetaPrefix = "metadata/images/"
	TableMetaPrefix = "metadata/tables/"
)

// Basename strips the prefix directories and extension from a storage key:
// "source/guides/vpc-guide.pdf" -> "vpc-guide".
func Basename(key string) string {
	base := path.Base(key)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// SourceName is the source identity of a storage key: the key with the
// source/ prefix removed. It is the value indexed in the source field
// and the substring grants match against.
func SourceName(key string) string {
	return strings.TrimPrefix(key, SourcePrefix)
}

// ProcessedKey is where the reconstructed markup for a source key lives.
func ProcessedKey(sourceKey string) string {
	return ProcessedPrefix + Basename(sourceKey) + ".md"
}

// ImageKey is the storage key for an extracted image asset.
func ImageKey(assetID, fileType string) string {
	if fileType == "" {
		fileType = "png"
	}
	return ImagePrefix + assetID + "." + fileType
}

// TableKey is the storage key for an extracted table's delimited text.
func TableKey(assetID string) string {
	return TablePrefix + assetID + ".csv"
}

// ImageMetaKey is the JSON sidecar key for an image asset.
func ImageMetaKey(assetID string) string {
	return ImageMetaPrefix + assetID + ".json"
}

// TableMetaKey is the JSON sidecar key for a table asset.
func TableMetaKey(assetID string) string {
	return TableMetaPrefix + assetID + ".json"
}

// S3URI renders the s3:// reference embedded in reconstructed markup.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ParseS3URI splits an s3:// reference back into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 uri: %q", uri)
	}
	return bucket, key, nil
}
