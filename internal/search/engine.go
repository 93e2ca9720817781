// Package search runs authorized hybrid retrieval over the index:
// source filtering from grants, fused keyword+vector queries, optional
// reranking, and answer composition over the top results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docsift/docsift/internal/chunker"
	"github.com/docsift/docsift/internal/fault"
	"github.com/docsift/docsift/internal/grants"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/rerank"
)

// Default result counts when the caller leaves them unset.
const (
	DefaultTextK  = 5
	DefaultImageK = 3
)

// Searcher is the slice of the index store the engine needs.
type Searcher interface {
	DistinctSources(ctx context.Context) ([]string, error)
	SearchHybrid(ctx context.Context, text string, vector []float32, sources []string, k int) ([]index.Hit, error)
	SearchImages(ctx context.Context, vector []float32, sources []string, k int) ([]index.Hit, error)
}

// Embedder produces query vectors in the text space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MultimodalEmbedder embeds query text into the space the indexed
// images occupy.
type MultimodalEmbedder interface {
	EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error)
}

// Authorizer resolves a user to their granted document keys.
type Authorizer interface {
	AuthorizedKeys(ctx context.Context, user string) []string
}

// Reranker scores passages against a query. Failures are advisory.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []rerank.Passage) ([]rerank.Score, error)
}

// Generator synthesizes answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Query is one retrieval request. TextK and ImageK fall back to the
// package defaults when not positive.
type Query struct {
	Text   string
	User   string
	TextK  int
	ImageK int
	Rerank bool
}

// Result holds the ranked text and image hits for a query.
type Result struct {
	Texts  []index.Hit
	Images []index.Hit
}

// Deps wires the engine's collaborators. Multimodal, Reranker and
// Generator are optional: a nil Multimodal skips the image list, a nil
// Reranker disables reranking, a nil Generator disables Answer.
type Deps struct {
	Store        Searcher
	Auth         Authorizer
	Text         Embedder
	Multimodal   MultimodalEmbedder
	Reranker     Reranker
	Generator    Generator
	AnswerTokens int
	Log          *slog.Logger
}

// Engine answers retrieval queries with per-user authorization.
type Engine struct {
	store        Searcher
	auth         Authorizer
	text         Embedder
	multimodal   MultimodalEmbedder
	reranker     Reranker
	generator    Generator
	tokens       *chunker.TokenCounter
	answerTokens int
	log          *slog.Logger
}

func NewEngine(deps Deps) *Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	answerTokens := deps.AnswerTokens
	if answerTokens <= 0 {
		answerTokens = defaultAnswerTokens
	}
	return &Engine{
		store:        deps.Store,
		auth:         deps.Auth,
		text:         deps.Text,
		multimodal:   deps.Multimodal,
		reranker:     deps.Reranker,
		generator:    deps.Generator,
		tokens:       chunker.NewTokenCounter(),
		answerTokens: answerTokens,
		log:          log,
	}
}

// Search resolves the user's permitted sources and runs the hybrid
// text query plus the image query against them. A user with no
// applicable grants gets empty results without any index query being
// issued.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("empty query")
	}
	textK := q.TextK
	if textK <= 0 {
		textK = DefaultTextK
	}
	imageK := q.ImageK
	if imageK <= 0 {
		imageK = DefaultImageK
	}

	keys := e.auth.AuthorizedKeys(ctx, q.User)
	if len(keys) == 0 {
		e.log.Info("no grants for user, returning empty results", "user", q.User)
		return &Result{}, nil
	}

	sources, err := e.store.DistinctSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	permitted := grants.PermittedSources(keys, sources)
	if len(permitted) == 0 {
		e.log.Info("no permitted sources for user, returning empty results", "user", q.User)
		return &Result{}, nil
	}

	vector, err := e.text.Embed(ctx, q.Text)
	if err != nil {
		return nil, fault.New(fault.Embedding, "embed query", err)
	}
	texts, err := e.store.SearchHybrid(ctx, q.Text, vector, permitted, textK)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	if q.Rerank && e.reranker != nil && len(texts) > 1 {
		texts = e.applyRerank(ctx, q.Text, texts)
	}

	return &Result{
		Texts:  texts,
		Images: e.searchImages(ctx, q.Text, permitted, imageK),
	}, nil
}

// searchImages runs the multimodal knn query. The image list is
// supplementary, so its failures degrade to an empty list instead of
// failing the whole search.
func (e *Engine) searchImages(ctx context.Context, text string, permitted []string, k int) []index.Hit {
	if e.multimodal == nil {
		return nil
	}
	vector, err := e.multimodal.EmbedMultimodal(ctx, text, nil)
	if err != nil {
		e.log.Warn("multimodal query embedding failed, skipping image results",
			"fault", string(fault.Embedding),
			"error", err)
		return nil
	}
	images, err := e.store.SearchImages(ctx, vector, permitted, k)
	if err != nil {
		e.log.Warn("image search failed, skipping image results", "error", err)
		return nil
	}
	return images
}

// applyRerank rescores hits with the reranker and sorts descending.
// Hits the reranker did not score keep their original score; a failed
// call keeps the original ordering.
func (e *Engine) applyRerank(ctx context.Context, query string, hits []index.Hit) []index.Hit {
	passages := make([]rerank.Passage, len(hits))
	for i, h := range hits {
		passages[i] = rerank.Passage{ID: h.ChunkID, Text: h.Content}
	}

	scores, err := e.reranker.Rerank(ctx, query, passages)
	if err != nil {
		e.log.Warn("rerank failed, keeping original order",
			"fault", string(fault.Rerank),
			"error", err)
		return hits
	}

	byID := make(map[string]float64, len(scores))
	for _, s := range scores {
		byID[s.ID] = s.Score
	}
	reranked := make([]index.Hit, len(hits))
	copy(reranked, hits)
	for i := range reranked {
		if score, ok := byID[reranked[i].ChunkID]; ok {
			reranked[i].Score = score
		}
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}

// Sources lists every distinct source value present in the index.
func (e *Engine) Sources(ctx context.Context) ([]string, error) {
	return e.store.DistinctSources(ctx)
}
