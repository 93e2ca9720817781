// Package api exposes the HTTP surface: search and answer queries,
// document ingestion, job status, document listings with previews, and
// operational stats.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docsift/docsift/internal/describe"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/pipeline"
	"github.com/docsift/docsift/internal/search"
)

// Engine is the retrieval surface the query handlers call.
type Engine interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
	Answer(ctx context.Context, q search.Query) (*search.Answer, error)
	Sources(ctx context.Context) ([]string, error)
}

// Jobs accepts and reports ingestion jobs. Submit returns the already
// running job alongside pipeline.ErrKeyActive when the key is taken.
type Jobs interface {
	Submit(key string) (*pipeline.Job, error)
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// Blob is the slice of blob storage the handlers need.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// IndexStats reports index size for the stats endpoint.
type IndexStats interface {
	Stats(ctx context.Context) (index.IndexStats, error)
}

// ModelStats reports description model latencies.
type ModelStats interface {
	Model() string
	Stats() describe.StatsSnapshot
}

// Deps holds the server's collaborators. IndexStats and ModelStats are
// optional; the stats endpoint reports what it has.
type Deps struct {
	Engine     Engine
	Jobs       Jobs
	Blobs      Blob
	IndexStats IndexStats
	ModelStats ModelStats
}

// Options carries request handling settings.
type Options struct {
	AuthToken      string // empty disables authentication
	MaxUploadBytes int64
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	engine Engine
	jobs   Jobs
	blobs  Blob
	istats IndexStats
	mstats ModelStats
	opts   Options
	log    *slog.Logger
}

// NewServer wires the routes and middleware.
func NewServer(deps Deps, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 100 << 20
	}
	s := &Server{
		engine: deps.Engine,
		jobs:   deps.Jobs,
		blobs:  deps.Blobs,
		istats: deps.IndexStats,
		mstats: deps.ModelStats,
		opts:   opts,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Liveness stays public.
	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.AuthToken))

		r.Post("/search", s.handleSearch)
		r.Post("/answer", s.handleAnswer)
		r.Post("/ingest", s.handleIngest)
		r.Post("/ingest/key", s.handleIngestKey)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{key}/preview", s.handlePreview)
		r.Get("/documents/{key}/outline", s.handleOutline)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
