package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docsift/docsift/internal/blob"
	"github.com/docsift/docsift/internal/parser"
	"github.com/docsift/docsift/internal/pipeline"
)

// handleIngest accepts a multipart upload, stores it under source/, and
// enqueues an ingestion job for it.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	key := blob.SourcePrefix + filename
	contentType := header.Header.Get("Content-Type")
	if err := s.blobs.Put(r.Context(), key, data, contentType); err != nil {
		jsonError(w, "failed to store upload: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.submitJob(w, key)
}

// handleIngestKey enqueues an ingestion job for a blob that is already
// in the bucket.
func (s *Server) handleIngestKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.Key, blob.SourcePrefix) || req.Key == blob.SourcePrefix {
		jsonError(w, fmt.Sprintf("key must name a document under %s", blob.SourcePrefix), http.StatusBadRequest)
		return
	}

	s.submitJob(w, req.Key)
}

func (s *Server) submitJob(w http.ResponseWriter, key string) {
	job, err := s.jobs.Submit(key)
	switch {
	case errors.Is(err, pipeline.ErrKeyActive):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "document key already has an active job",
			"job_id": job.ID,
		})
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"document_key": key,
		"poll_url":     "/api/v1/jobs/" + job.ID,
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
