package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// LinkRequest is the body of POST /links.
type LinkRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// handleListLinks returns the known source -> target wiring.
func (s *Server) handleListLinks(w http.ResponseWriter, _ *http.Request) {
	links := s.dashboard.Snapshot().Links
	writeJSON(w, http.StatusOK, map[string]any{
		"links": links,
		"count": len(links),
	})
}

// handleCreateLink points a source widget at a target widget's points.
func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	source, ok := node.ParseKind(req.Source)
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown source kind: "+req.Source)
		return
	}
	target, ok := node.ParseKind(req.Target)
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown target kind: "+req.Target)
		return
	}

	ctx := session.WithSource(r.Context(), "api")
	if err := s.dashboard.Link(ctx, source, target); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": source, "target": target})
}

// handleDeleteLink clears a source widget's target.
func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	source, ok := kindParam(w, r, "source")
	if !ok {
		return
	}

	ctx := session.WithSource(r.Context(), "api")
	if err := s.dashboard.Unlink(ctx, source); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
