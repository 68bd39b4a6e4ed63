package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/luke-core/internal/gateway"
	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/linkformat"
	"github.com/nerrad567/luke-core/internal/node"
)

var corerd = linkformat.Link{URL: "coap://gw/resource-lookup", Anchor: "coap://gw"}

type post struct {
	Target string
	Body   string
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// fakeGateway serves /coap, /coap_observe and /reboot. POSTed bodies become
// the resource's GET answer, like a device storing its target.
type fakeGateway struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	resources map[string]string
	posts     []post
	reboots   int
	observers map[string][]*wsConn
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	gw := &fakeGateway{
		resources: make(map[string]string),
		observers: make(map[string][]*wsConn),
	}
	gw.Server = httptest.NewServer(http.HandlerFunc(gw.serveHTTP))
	t.Cleanup(gw.Close)
	return gw
}

func (gw *fakeGateway) serveHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")

	switch r.URL.Path {
	case "/coap":
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			gw.mu.Lock()
			gw.posts = append(gw.posts, post{Target: target, Body: string(body)})
			gw.resources[target] = string(body)
			gw.mu.Unlock()
			w.WriteHeader(http.StatusOK)
			return
		}
		gw.mu.Lock()
		body, ok := gw.resources[target]
		gw.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", gateway.ContentJSON)
		_, _ = io.WriteString(w, body)

	case "/coap_observe":
		conn, err := gw.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &wsConn{conn: conn}
		gw.mu.Lock()
		gw.observers[target] = append(gw.observers[target], c)
		gw.mu.Unlock()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		gw.mu.Lock()
		conns := gw.observers[target]
		for i, other := range conns {
			if other == c {
				gw.observers[target] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		gw.mu.Unlock()
		_ = conn.Close()

	case "/reboot":
		gw.mu.Lock()
		gw.reboots++
		gw.mu.Unlock()
		w.WriteHeader(http.StatusOK)

	default:
		http.NotFound(w, r)
	}
}

func (gw *fakeGateway) service() string {
	return strings.TrimPrefix(gw.URL, "http://")
}

func (gw *fakeGateway) set(target, body string) {
	gw.mu.Lock()
	gw.resources[target] = body
	gw.mu.Unlock()
}

func (gw *fakeGateway) observed(target string) bool {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.observers[target]) > 0
}

// push sends body to every observer of target, waiting for one to appear.
func (gw *fakeGateway) push(t *testing.T, target, body string) {
	t.Helper()
	require.Eventually(t, func() bool { return gw.observed(target) },
		5*time.Second, 5*time.Millisecond, "nobody observes %s", target)

	gw.mu.Lock()
	conns := append([]*wsConn(nil), gw.observers[target]...)
	gw.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, []byte(body))
		c.mu.Unlock()
		require.NoError(t, err)
	}
}

func (gw *fakeGateway) recordedPosts() []post {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]post(nil), gw.posts...)
}

func (gw *fakeGateway) rebootCount() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.reboots
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventSink) Broadcast(channel string, payload any) {
	ev := payload.(Event)
	if channel != string(ev.Type) {
		panic("channel does not match event type")
	}
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventSink) ofType(t EventType) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type memHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (m *memHistory) Record(_ context.Context, e *history.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, *e)
	m.mu.Unlock()
	return nil
}

func (m *memHistory) actions(action string) []history.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Entry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type pointsWrite struct {
	Anchor, Kind string
	Points       int
	Ratio        float64
}

type memTelemetry struct {
	mu     sync.Mutex
	writes []pointsWrite
	counts []map[string]int
}

func (m *memTelemetry) WriteNodeCounts(byKind map[string]int) {
	m.mu.Lock()
	m.counts = append(m.counts, byKind)
	m.mu.Unlock()
}

func (m *memTelemetry) lastCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.counts) == 0 {
		return nil
	}
	return m.counts[len(m.counts)-1]
}

func (m *memTelemetry) WritePoints(anchor, kind string, points int, ratio float64) {
	m.mu.Lock()
	m.writes = append(m.writes, pointsWrite{anchor, kind, points, ratio})
	m.mu.Unlock()
}

func (m *memTelemetry) all() []pointsWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pointsWrite(nil), m.writes...)
}

type published struct {
	Topic    string
	Retained bool
}

type memPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (m *memPublisher) Publish(topic string, _ []byte, _ byte, retained bool) error {
	m.mu.Lock()
	m.msgs = append(m.msgs, published{topic, retained})
	m.mu.Unlock()
	return nil
}

func (m *memPublisher) topics() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.msgs...)
}

type harness struct {
	gw        *fakeGateway
	registry  *node.Registry
	session   *Session
	events    *eventSink
	history   *memHistory
	telemetry *memTelemetry
	publisher *memPublisher
}

func newHarness(t *testing.T, autoLink bool) *harness {
	t.Helper()
	h := &harness{
		gw:        newFakeGateway(t),
		registry:  node.NewRegistry(),
		events:    &eventSink{},
		history:   &memHistory{},
		telemetry: &memTelemetry{},
		publisher: &memPublisher{},
	}
	client := gateway.New(gateway.Config{
		Service:        h.gw.service(),
		ReconnectDelay: 20 * time.Millisecond,
	})

	s, err := New(Deps{
		Registry:  h.registry,
		Transport: client,
		CoreRD:    corerd,
		AutoLink:  autoLink,
		Notifier:  h.events,
		Recorder:  h.history,
		Telemetry: h.telemetry,
		Publisher: h.publisher,
	})
	require.NoError(t, err)
	h.session = s
	t.Cleanup(s.Close)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Start(context.Background()))
}

// seed stores links directly, bypassing discovery.
func (h *harness) seed(t *testing.T, body string) {
	t.Helper()
	for _, l := range linkformat.Parse(body) {
		_, err := h.registry.Upsert(l)
		require.NoError(t, err)
	}
}

const (
	controllerLinks = `<coap://[fe80::1]/btn/target>;anchor="coap://[fe80::1]",` +
		`<coap://[fe80::1]/btn/reboot>;anchor="coap://[fe80::1]"`
	displayLinks = `<coap://[fe80::2]/dsp/points>;anchor="coap://[fe80::2]",` +
		`<coap://[fe80::2]/dsp/target>;anchor="coap://[fe80::2]"`
	dinoLinks = `<coap://[fe80::3]/dino/points>;anchor="coap://[fe80::3]"`
)
