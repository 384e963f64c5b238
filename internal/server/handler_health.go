package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/labflow/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	status, storeStatus := "healthy", "ok"
	if _, _, err := s.store.ListProjects(r.Context(), model.ListOptions{Limit: 1}); err != nil {
		s.logger.Warn("health probe failed", "error", err)
		status, storeStatus = "degraded", err.Error()
	}

	respondOK(w, reqID, healthResponse{
		Status:    status,
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     storeStatus,
	})
}
