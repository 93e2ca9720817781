package api

import (
	"net/http"
)

// handleStats reports index size, queue depth, and description model
// latencies. Optional collaborators that are absent are simply omitted.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"queue_depth": s.jobs.QueueDepth(),
	}

	if s.istats != nil {
		if st, err := s.istats.Stats(r.Context()); err != nil {
			payload["index_error"] = err.Error()
		} else {
			payload["index"] = st
		}
	}
	if s.mstats != nil {
		payload["model"] = s.mstats.Model()
		payload["model_stats"] = s.mstats.Stats()
	}

	writeJSON(w, http.StatusOK, payload)
}
