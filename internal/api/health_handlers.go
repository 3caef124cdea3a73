package api

import (
	"net/http"

	"github.com/moriai/storybook-server/internal/api/dto"
	"github.com/moriai/storybook-server/internal/http/response"
)

// handleHealthCheck reports liveness.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"status": "ok", "service": "storybook"}, s.logger)
}

// handleRoot reports service identity.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, dto.ServiceInfo{
		Service: "Storybook Service",
		Version: "1.0.0",
		Status:  "running",
	}, s.logger)
}
