package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/search"
)

type queryRequest struct {
	Query  string `json:"query"`
	User   string `json:"user"`
	TextK  int    `json:"text_k"`
	ImageK int    `json:"image_k"`
	Rerank bool   `json:"rerank"`
}

func decodeQuery(r *http.Request) (search.Query, error) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return search.Query{}, fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return search.Query{}, errors.New("query is required")
	}
	if strings.TrimSpace(req.User) == "" {
		return search.Query{}, errors.New("user is required")
	}
	return search.Query{
		Text:   req.Query,
		User:   req.User,
		TextK:  req.TextK,
		ImageK: req.ImageK,
		Rerank: req.Rerank,
	}, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.engine.Search(r.Context(), q)
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"texts":  hitPayloads(res.Texts),
		"images": hitPayloads(res.Images),
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ans, err := s.engine.Answer(r.Context(), q)
	if err != nil {
		jsonError(w, "answer failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ans)
}

func hitPayloads(hits []index.Hit) []map[string]any {
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]any{
			"chunk_id":      h.ChunkID,
			"content":       h.Content,
			"source":        h.Source,
			"document_type": h.DocumentType,
			"score":         h.Score,
			"metadata":      h.Metadata,
		})
	}
	return out
}
