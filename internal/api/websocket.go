package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/luke-core/internal/infrastructure/config"
	"github.com/nerrad567/luke-core/internal/infrastructure/logging"
	"github.com/nerrad567/luke-core/internal/infrastructure/metrics"
	"github.com/nerrad567/luke-core/internal/session"
)

// Message types exchanged with the panel.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is how many events may queue for one slow panel.
	wsSendBufferSize = 64
)

// WSMessage is the envelope of every frame the hub sends.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects session event channels. An empty list means
// every channel.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inbound is a frame received from a panel.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// channelSet is a set of session event types.
type channelSet map[session.EventType]struct{}

// parseChannels validates channel names against the session's event types.
func parseChannels(names []string) (channelSet, error) {
	known := session.AllEvents()
	set := make(channelSet, len(known))
	if len(names) == 0 {
		for _, ev := range known {
			set[ev] = struct{}{}
		}
		return set, nil
	}

	for _, name := range names {
		ev := session.EventType(name)
		valid := false
		for _, k := range known {
			if k == ev {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		set[ev] = struct{}{}
	}
	return set, nil
}

func (cs channelSet) names() []string {
	out := make([]string, 0, len(cs))
	for ev := range cs {
		out = append(out, string(ev))
	}
	sort.Strings(out)
	return out
}

// wsClient is one connected panel.
type wsClient struct {
	conn *websocket.Conn
	out  chan []byte

	mu       sync.Mutex
	channels channelSet
	done     bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn:     conn,
		out:      make(chan []byte, wsSendBufferSize),
		channels: make(channelSet),
	}
}

func (c *wsClient) wants(ev session.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[ev]
	return ok
}

// push queues data without blocking. It reports false when the frame was
// dropped because the client is gone or too slow.
func (c *wsClient) push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// close ends the write loop. Safe to call more than once.
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		c.done = true
		close(c.out)
	}
}

// Hub fans session events out to connected panels.
//
// Channels are the session event types ("node.discovered",
// "points.updated", ...). A panel receives an event only after subscribing
// to its channel.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub. m may be nil.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every panel.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	h.setGauge(0)
}

// ClientCount returns the number of connected panels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast implements session.Notifier.
func (h *Hub) Broadcast(channel string, payload any) {
	ev := session.EventType(channel)
	data, err := h.encode(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(ev) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if !c.push(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("event dropped for slow panels", "channel", channel, "dropped", dropped)
	}
}

// add registers c. It reports false once the hub has shut down.
func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.setGauge(n)
	h.logger.Debug("panel connected", "clients", n)
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.setGauge(n)
	h.logger.Debug("panel disconnected", "clients", n)
}

func (h *Hub) setGauge(n int) {
	if h.metrics != nil {
		h.metrics.WebSocketClients.Set(float64(n))
	}
}

func (h *Hub) encode(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// timeouts returns the keepalive ping period and how long a panel may stay
// silent before it is dropped.
func (h *Hub) timeouts() (ping, idle time.Duration) {
	ping = time.Duration(h.cfg.PingInterval) * time.Second
	idle = ping + time.Duration(h.cfg.PongTimeout)*time.Second
	return ping, idle
}

// handleWebSocket upgrades a panel connection and attaches it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(conn)
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	_, idle := h.timeouts()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any frame counts.
		_ = extend()
		h.handle(c, data)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ping, _ := h.timeouts()
	writeWait := time.Duration(h.cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle answers one panel frame.
func (h *Hub) handle(c *wsClient, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(c, WSMessage{Type: WSTypeError, Payload: errorPayload("invalid JSON message")})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		h.updateChannels(c, msg)
	case WSTypePing:
		h.reply(c, WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		h.reply(c, WSMessage{Type: WSTypeError, ID: msg.ID, Payload: errorPayload("unknown message type: " + msg.Type)})
	}
}

func (h *Hub) updateChannels(c *wsClient, msg inbound) {
	var req WSSubscribePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			h.reply(c, WSMessage{Type: WSTypeError, ID: msg.ID, Payload: errorPayload("invalid " + msg.Type + " payload")})
			return
		}
	}
	set, err := parseChannels(req.Channels)
	if err != nil {
		h.reply(c, WSMessage{Type: WSTypeError, ID: msg.ID, Payload: errorPayload(err.Error())})
		return
	}

	c.mu.Lock()
	for ev := range set {
		if msg.Type == WSTypeSubscribe {
			c.channels[ev] = struct{}{}
		} else {
			delete(c.channels, ev)
		}
	}
	current := c.channels.names()
	c.mu.Unlock()

	key := "subscribed"
	if msg.Type == WSTypeUnsubscribe {
		key = "unsubscribed"
	}
	h.reply(c, WSMessage{Type: WSTypeResponse, ID: msg.ID, Payload: map[string]any{
		key:        set.names(),
		"channels": current,
	}})
}

func (h *Hub) reply(c *wsClient, msg WSMessage) {
	data, err := h.encode(msg)
	if err != nil {
		return
	}
	c.push(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
