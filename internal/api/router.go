package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/luke-core/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// The page reads the gateway address from here, like the original
	// static deployment did.
	r.Get("/coap_service.json", s.handleServiceDocument)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		if s.metrics != nil {
			r.Handle("/metrics", s.metrics.Handler())
		}

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Route("/{kind}", func(r chi.Router) {
				r.Get("/", s.handleGetNode)
				r.Post("/reboot", s.handleRebootNode)
				r.Post("/refresh", s.handleRefreshNode)
				r.Delete("/widget", s.handleHideWidget)
			})
		})

		r.Route("/links", func(r chi.Router) {
			r.Get("/", s.handleListLinks)
			r.Post("/", s.handleCreateLink)
			r.Delete("/{source}", s.handleDeleteLink)
		})

		r.Post("/reboot", s.handleRebootAll)
		r.Get("/history", s.handleListHistory)
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	r.Handle("/*", panel.Handler(s.panelCfg.Dir))

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleServiceDocument returns the gateway configuration document.
func (s *Server) handleServiceDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service)
}

// wsPath is where the event WebSocket is mounted under /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
