package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/soilsense-core/internal/pipeline"
)

// readyCheckTimeout bounds the transport health check behind /readyz.
const readyCheckTimeout = 2 * time.Second

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// readyResponse is the body of a successful GET /readyz.
type readyResponse struct {
	Status   string `json:"status"`
	Pipeline string `json:"pipeline"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.version,
	})
}

// handleReady reports whether the ingester is moving readings.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	if err := s.transport.HealthCheck(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "transport: "+err.Error())
		return
	}

	state := s.pipeline.State()
	if state != pipeline.StateDraining {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "pipeline is "+state.String())
		return
	}

	writeJSON(w, http.StatusOK, readyResponse{
		Status:   "ready",
		Pipeline: state.String(),
	})
}
