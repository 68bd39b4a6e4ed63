package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/luke-core/internal/gateway"
	"github.com/nerrad567/luke-core/internal/infrastructure/metrics"
	"github.com/nerrad567/luke-core/internal/linkformat"
	"github.com/nerrad567/luke-core/internal/node"
)

// Logger defines the logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the gateway surface the session drives.
// *gateway.Client satisfies it.
type Transport interface {
	Fetch(ctx context.Context, resourceURL, accept string) (*gateway.Response, error)
	Send(ctx context.Context, resourceURL string, payload any, contentType string) error
	RebootAll(ctx context.Context) error
	Subscribe(ctx context.Context, resourceURL string, onMessage gateway.MessageHandler) *gateway.Subscription
}

// Deps holds everything a Session needs. Registry, Transport and CoreRD are
// required; the rest may be nil.
type Deps struct {
	Registry  *node.Registry
	Transport Transport

	// CoreRD describes the discovery resource, e.g.
	// <coap://gw/resource-lookup>;anchor="coap://gw".
	CoreRD linkformat.Link

	// AutoLink wires controller to display and display to dino as soon as
	// both ends are discovered.
	AutoLink bool

	Notifier  Notifier
	Recorder  Recorder
	Telemetry Telemetry
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    Logger
}

type pairKey struct {
	source, target string
}

// Session is the dashboard's state: discovered nodes, open observations,
// links between nodes, points readings and hidden widgets.
//
// All exported methods are safe for concurrent use.
type Session struct {
	registry  *node.Registry
	transport Transport
	corerd    linkformat.Link
	autoLink  bool

	notifier  Notifier
	recorder  Recorder
	telemetry Telemetry
	publisher Publisher
	metrics   *metrics.Metrics
	logger    Logger

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	closed     bool
	subs       map[string]*gateway.Subscription
	links      map[string]string // source anchor -> target anchor
	points     map[string]int    // anchor -> last points reading
	hidden     map[string]bool   // anchor -> widget hidden
	autoLinked map[pairKey]bool

	wg sync.WaitGroup
}

// New creates a session. It does not talk to the gateway until Start.
func New(deps Deps) (*Session, error) {
	if deps.Registry == nil {
		return nil, errors.New("session: registry is required")
	}
	if deps.Transport == nil {
		return nil, errors.New("session: transport is required")
	}

	s := &Session{
		registry:   deps.Registry,
		transport:  deps.Transport,
		corerd:     deps.CoreRD,
		autoLink:   deps.AutoLink,
		notifier:   deps.Notifier,
		recorder:   deps.Recorder,
		telemetry:  deps.Telemetry,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		subs:       make(map[string]*gateway.Subscription),
		links:      make(map[string]string),
		points:     make(map[string]int),
		hidden:     make(map[string]bool),
		autoLinked: make(map[pairKey]bool),
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s, nil
}

// Start seeds the registry with the discovery descriptor and observes it.
//
// Returns ErrNoDiscoveryResource, and leaves the registry untouched, when
// the descriptor is not a resource-lookup resource.
func (s *Session) Start(ctx context.Context) error {
	if node.ClassifyResource(s.corerd) != node.ResourceResourceLookup {
		return fmt.Errorf("%w: %s", ErrNoDiscoveryResource, s.corerd.URL)
	}

	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()

	result, err := s.registry.Upsert(s.corerd)
	if err != nil {
		return fmt.Errorf("seeding discovery resource: %w", err)
	}
	s.applyUpsert(result)

	s.logger.Info("session started",
		"corerd", s.corerd.URL,
		"anchor", s.corerd.Anchor,
		"auto_link", s.autoLink,
	)
	s.observe(result.Resource)
	return nil
}

// Close stops every observation and waits for in-flight requests.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	subs := make([]*gateway.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[string]*gateway.Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
		<-sub.Done()
	}
	s.wg.Wait()
	s.logger.Info("session closed")
}

// observe opens an observation of res unless one is already open for its URL.
func (s *Session) observe(res node.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed {
		return
	}
	if _, ok := s.subs[res.URL]; ok {
		return
	}

	s.subs[res.URL] = s.transport.Subscribe(s.ctx, res.URL, func(msg gateway.Message) error {
		return s.dispatchMessage(res, msg)
	})
	s.logger.Debug("observing resource", "url", res.URL, "resource", res.Kind)
}

// unobserve stops the observations of every resource of n. The discovery
// feed stays open until Close, even when its node is evicted.
func (s *Session) unobserve(n *node.Node) {
	s.mu.Lock()
	var stopped []*gateway.Subscription
	for _, res := range n.Resources {
		if res.URL == s.corerd.URL {
			continue
		}
		if sub, ok := s.subs[res.URL]; ok {
			delete(s.subs, res.URL)
			stopped = append(stopped, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range stopped {
		sub.Stop()
	}
}

// fetch GETs res in the background and dispatches the response.
func (s *Session) fetch(res node.Resource) {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		resp, err := s.transport.Fetch(ctx, res.URL, gateway.ContentJSON)
		if err != nil {
			// Already logged by the transport. GETs are never retried.
			return
		}
		if err := s.dispatchResponse(res, resp); err != nil {
			s.logger.Warn("handling response failed", "url", res.URL, "error", err)
		}
	}()
}

// goAsync runs fn tracked by Close.
func (s *Session) goAsync(fn func(ctx context.Context)) {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}
