package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// ConfirmRequest is the body of actions that need the operator's consent.
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

// handleListNodes returns the full dashboard state.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.Snapshot())
}

// handleGetNode returns one node by kind.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r, "kind")
	if !ok {
		return
	}

	state, found := s.dashboard.Node(kind)
	if !found {
		writeNotFound(w, "no "+string(kind)+" discovered")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleRebootNode reboots one node. The body must carry {"confirm": true}.
func (s *Server) handleRebootNode(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r, "kind")
	if !ok {
		return
	}
	req, ok := decodeConfirm(w, r)
	if !ok {
		return
	}

	ctx := session.WithSource(r.Context(), "api")
	if err := s.dashboard.Reboot(ctx, kind, session.Confirmed(req.Confirm)); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "rebooting", "kind": kind})
}

// handleRebootAll asks the gateway to reboot every device.
func (s *Server) handleRebootAll(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeConfirm(w, r)
	if !ok {
		return
	}

	ctx := session.WithSource(r.Context(), "api")
	if err := s.dashboard.RebootAll(ctx, session.Confirmed(req.Confirm)); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "rebooting"})
}

// handleHideWidget removes a widget from the page. Pass ?confirm=true.
func (s *Server) handleHideWidget(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r, "kind")
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")) //nolint:errcheck // anything unparsable is "not confirmed"

	ctx := session.WithSource(r.Context(), "api")
	if err := s.dashboard.HideWidget(ctx, kind, session.Confirmed(confirmed)); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshNode re-reads a node's points and target.
func (s *Server) handleRefreshNode(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r, "kind")
	if !ok {
		return
	}
	if err := s.dashboard.Refresh(kind); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "refreshing", "kind": kind})
}

// kindParam parses a node kind URL parameter, writing 400 when unknown.
func kindParam(w http.ResponseWriter, r *http.Request, name string) (node.Kind, bool) {
	raw := chi.URLParam(r, name)
	kind, ok := node.ParseKind(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown node kind: "+raw)
		return "", false
	}
	return kind, true
}

// decodeConfirm reads an optional ConfirmRequest body. An empty body is
// "not confirmed".
func decodeConfirm(w http.ResponseWriter, r *http.Request) (ConfirmRequest, bool) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return req, false
	}
	return req, true
}
