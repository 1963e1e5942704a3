package api

import (
	"encoding/json"
	"net/http"
)

type chatRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "request body must be JSON with a \"prompt\" field")
			return
		}

		reply, err := s.assistant.Ask(r.Context(), req.Prompt)
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, reply)
	}
}
