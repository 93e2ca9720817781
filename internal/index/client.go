package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Options configures the OpenSearch store.
type Options struct {
	URL      string
	Username string
	Password string
	Index    string
	Dims     Dims
	Timeout  time.Duration
}

// Store wraps an OpenSearch index of chunk and image documents.
type Store struct {
	client  *opensearch.Client
	index   string
	dims    Dims
	timeout time.Duration
}

// Hit is one search result with its relevance score.
type Hit struct {
	Document
	Score float64
}

// IndexStats reports document count and on-disk size for the index.
type IndexStats struct {
	Docs      int64 `json:"docs"`
	SizeBytes int64 `json:"size_bytes"`
}

// NewStore connects to OpenSearch. The connection is lazy, the first
// request surfaces reachability problems.
func NewStore(opts Options) (*Store, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("opensearch url is required")
	}
	if opts.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{opts.URL},
		Username:  opts.Username,
		Password:  opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	dims := opts.Dims
	if dims.Text <= 0 {
		dims = DefaultDims()
	}

	return &Store{
		client:  client,
		index:   opts.Index,
		dims:    dims,
		timeout: timeout,
	}, nil
}

// Index returns the index name this store writes to.
func (s *Store) Index() string {
	return s.index
}

// EnsureIndex creates the index with the knn mapping when it does not
// exist yet. Existing indices are left untouched.
func (s *Store) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists := opensearchapi.IndicesExistsRequest{Index: []string{s.index}}
	res, err := exists.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping, err := Mapping(s.dims)
	if err != nil {
		return err
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(mapping),
	}
	res, err = create.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, res.String())
	}
	return nil
}

// IndexOne validates and upserts a single document keyed by its chunk
// id. Reindexing the same chunk id overwrites the previous version.
func (s *Store) IndexOne(ctx context.Context, doc *Document) error {
	if err := Validate(doc, s.dims); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ChunkID, err)
	}

	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: doc.ChunkID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ChunkID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document %s: %s", doc.ChunkID, res.String())
	}
	return nil
}

// BulkIndex upserts documents in one request. Documents that fail
// validation or are rejected by the cluster are reported in the
// returned map keyed by chunk id, the rest are indexed. The error
// return is reserved for request-level failures.
func (s *Store) BulkIndex(ctx context.Context, docs []*Document) (map[string]string, error) {
	failed := make(map[string]string)

	var buf bytes.Buffer
	count := 0
	for _, doc := range docs {
		if err := Validate(doc, s.dims); err != nil {
			failed[doc.ChunkID] = err.Error()
			continue
		}
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": s.index, "_id": doc.ChunkID},
		})
		if err != nil {
			failed[doc.ChunkID] = err.Error()
			continue
		}
		body, err := json.Marshal(doc)
		if err != nil {
			failed[doc.ChunkID] = err.Error()
			continue
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(body)
		buf.WriteByte('\n')
		count++
	}
	if count == 0 {
		return failed, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return failed, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return failed, fmt.Errorf("bulk index: %s", res.String())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return failed, fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Error != nil {
					failed[result.ID] = result.Error.Reason
				}
			}
		}
	}
	return failed, nil
}

// SearchHybrid fuses keyword and vector relevance over text chunks,
// restricted to the given sources. A nil source list searches
// everything, callers enforce authorization before reaching here.
func (s *Store) SearchHybrid(ctx context.Context, text string, vector []float32, sources []string, k int) ([]Hit, error) {
	res, err := s.search(ctx, hybridQuery(text, vector, sources, k))
	if err != nil {
		return nil, err
	}
	return res.hits(), nil
}

// SearchImages finds image documents near the query vector, restricted
// to the given sources.
func (s *Store) SearchImages(ctx context.Context, vector []float32, sources []string, k int) ([]Hit, error) {
	res, err := s.search(ctx, imageQuery(vector, sources, k))
	if err != nil {
		return nil, err
	}
	return res.hits(), nil
}

// DistinctSources lists every source value present in the index.
func (s *Store) DistinctSources(ctx context.Context) ([]string, error) {
	res, err := s.search(ctx, distinctSourcesQuery())
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(res.Aggregations.DistinctSources.Buckets))
	for _, bucket := range res.Aggregations.DistinctSources.Buckets {
		sources = append(sources, bucket.Key)
	}
	return sources, nil
}

// Stats reports document count and store size for the index.
func (s *Store) Stats(ctx context.Context) (IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.IndicesStatsRequest{
		Index:  []string{s.index},
		Metric: []string{"docs", "store"},
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return IndexStats{}, fmt.Errorf("index stats: %s", res.String())
	}

	var parsed statsResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return IndexStats{}, fmt.Errorf("decode stats response: %w", err)
	}
	stats, ok := parsed.Indices[s.index]
	if !ok {
		return IndexStats{}, fmt.Errorf("index %s missing from stats response", s.index)
	}
	return IndexStats{
		Docs:      stats.Primaries.Docs.Count,
		SizeBytes: stats.Primaries.Store.SizeInBytes,
	}, nil
}

func (s *Store) search(ctx context.Context, query map[string]any) (*searchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", s.index, res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		DistinctSources struct {
			Buckets []struct {
				Key string `json:"key"`
			} `json:"buckets"`
		} `json:"distinct_sources"`
	} `json:"aggregations"`
}

func (r *searchResponse) hits() []Hit {
	hits := make([]Hit, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		hit := Hit{Document: h.Source, Score: h.Score}
		if hit.ChunkID == "" {
			hit.ChunkID = h.ID
		}
		hits = append(hits, hit)
	}
	return hits
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type statsResponse struct {
	Indices map[string]struct {
		Primaries struct {
			Docs struct {
				Count int64 `json:"count"`
			} `json:"docs"`
			Store struct {
				SizeInBytes int64 `json:"size_in_bytes"`
			} `json:"store"`
		} `json:"primaries"`
	} `json:"indices"`
}
