package index

// Keyword and vector relevance weights for hybrid search. Vector
// similarity dominates, keyword matching breaks ties and catches exact
// terms the embedding missed.
const (
	keywordBoost = 0.3
	vectorBoost  = 0.7
)

// maxDistinctSources caps the source aggregation. Terms aggregations
// truncate silently past their size.
const maxDistinctSources = 1000

var excludeEmbeddings = map[string]any{
	"excludes": []string{"text_embedding", "image_embedding", "multimodal_embedding"},
}

// hybridQuery fuses a keyword match on content with a knn lookup on
// text_embedding, filtered to the permitted sources.
func hybridQuery(text string, vector []float32, sources []string, k int) map[string]any {
	return map[string]any{
		"size":    k,
		"_source": excludeEmbeddings,
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{
						"match": map[string]any{
							"content": map[string]any{
								"query": text,
								"boost": keywordBoost,
							},
						},
					},
					map[string]any{
						"knn": map[string]any{
							"text_embedding": map[string]any{
								"vector": vector,
								"k":      k,
								"boost":  vectorBoost,
							},
						},
					},
				},
				"filter": sourceFilter(sources),
			},
		},
	}
}

// imageQuery finds image documents near the query vector, filtered to
// the permitted sources.
func imageQuery(vector []float32, sources []string, k int) map[string]any {
	filter := []any{
		map[string]any{
			"term": map[string]any{"document_type": TypeImage},
		},
	}
	filter = append(filter, sourceFilter(sources)...)

	return map[string]any{
		"size":    k,
		"_source": excludeEmbeddings,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{
						"knn": map[string]any{
							"multimodal_embedding": map[string]any{
								"vector": vector,
								"k":      k,
							},
						},
					},
				},
				"filter": filter,
			},
		},
	}
}

// sourceFilter restricts hits to the given sources. An empty list means
// the caller already authorized everything, so no filter is emitted.
func sourceFilter(sources []string) []any {
	if len(sources) == 0 {
		return []any{}
	}
	return []any{
		map[string]any{
			"terms": map[string]any{"source": sources},
		},
	}
}

// distinctSourcesQuery aggregates every source value in the index
// without fetching hits.
func distinctSourcesQuery() map[string]any {
	return map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"distinct_sources": map[string]any{
				"terms": map[string]any{
					"field": "source",
					"size":  maxDistinctSources,
				},
			},
		},
	}
}
