package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode json response", zap.Error(err))
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSONError(w, http.StatusBadRequest, msg)
}

func (s *Server) notFound(w http.ResponseWriter, msg string) {
	s.writeJSONError(w, http.StatusNotFound, msg)
}

func (s *Server) internalError(w http.ResponseWriter, msg string) {
	s.writeJSONError(w, http.StatusInternalServerError, msg)
}
