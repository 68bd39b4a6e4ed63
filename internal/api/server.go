package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/infrastructure/config"
	"github.com/nerrad567/luke-core/internal/infrastructure/logging"
	"github.com/nerrad567/luke-core/internal/infrastructure/metrics"
	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dashboard is the session surface the API drives. *session.Session
// satisfies it.
type Dashboard interface {
	Snapshot() session.Snapshot
	Node(kind node.Kind) (session.NodeState, bool)
	Link(ctx context.Context, source, target node.Kind) error
	Unlink(ctx context.Context, source node.Kind) error
	Reboot(ctx context.Context, kind node.Kind, c session.Confirmer) error
	RebootAll(ctx context.Context, c session.Confirmer) error
	HideWidget(ctx context.Context, kind node.Kind, c session.Confirmer) error
	Refresh(kind node.Kind) error
}

// HealthChecker is an optional backend reported by /api/v1/status.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Panel     config.PanelConfig
	Service   config.ServiceDocument
	Logger    *logging.Logger
	Dashboard Dashboard
	Registry  *node.Registry
	History   history.Repository // optional
	Metrics   *metrics.Registry  // optional: serves /api/v1/metrics
	Backends  map[string]HealthChecker
	Hub       *Hub // if set, the server uses this hub instead of creating its own
	Version   string
}

// Server is the HTTP API server of the dashboard.
//
// It serves the page, the REST API and the event WebSocket. The server is
// created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	panelCfg    config.PanelConfig
	service     config.ServiceDocument
	logger      *logging.Logger
	dashboard   Dashboard
	registry    *node.Registry
	history     history.Repository
	metrics     *metrics.Registry
	backends    map[string]HealthChecker
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server. It is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dashboard == nil {
		return nil, fmt.Errorf("dashboard is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("node registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		panelCfg:  deps.Panel,
		service:   deps.Service,
		logger:    deps.Logger.Component("api"),
		dashboard: deps.Dashboard,
		registry:  deps.Registry,
		history:   deps.History,
		metrics:   deps.Metrics,
		backends:  deps.Backends,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The session broadcasts through the same hub, so it is usually built
	// before the server.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger, nil)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
