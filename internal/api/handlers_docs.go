package api

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/docsift/docsift/internal/assemble"
	"github.com/docsift/docsift/internal/blob"
)

// handleListDocuments returns every distinct source in the index.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	sources, err := s.engine.Sources(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": sources,
		"count":     len(sources),
	})
}

// handlePreview renders the reconstructed markup of a document as HTML.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	key := documentParam(r)
	data, err := s.blobs.Get(r.Context(), blob.ProcessedKey(key))
	if err != nil {
		jsonError(w, "no processed document for "+key, http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleOutline returns the heading tree of the reconstructed markup.
func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	key := documentParam(r)
	data, err := s.blobs.Get(r.Context(), blob.ProcessedKey(key))
	if err != nil {
		jsonError(w, "no processed document for "+key, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, assemble.BuildOutline(blob.Basename(key), data))
}

// documentParam reads the document key path parameter. Nested keys
// arrive with their slashes percent-encoded.
func documentParam(r *http.Request) string {
	key := chi.URLParam(r, "key")
	if dec, err := url.PathUnescape(key); err == nil {
		key = dec
	}
	return key
}
