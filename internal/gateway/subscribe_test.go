package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

// observeServer starts a gateway whose /coap_observe endpoint runs fn for
// every connection, numbered from 1.
func observeServer(t *testing.T, fn func(n int, w http.ResponseWriter, r *http.Request)) (string, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coap_observe" {
			http.NotFound(w, r)
			return
		}
		fn(int(conns.Add(1)), w, r)
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://"), &conns
}

func TestSubscribe_DeliversAcrossReconnects(t *testing.T) {
	service, _ := observeServer(t, func(n int, w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("msg-%d", n)))
	})

	c := New(Config{Service: service, ReconnectDelay: 10 * time.Millisecond})

	var mu sync.Mutex
	var got []string
	sub := c.Subscribe(context.Background(), "coap://gw/resource-lookup", func(msg Message) error {
		mu.Lock()
		got = append(got, string(msg.Data))
		mu.Unlock()
		assert.Equal(t, "coap://gw/resource-lookup", msg.URL)
		return nil
	})
	defer sub.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"msg-1", "msg-2", "msg-3"}, got[:3])
	mu.Unlock()
	assert.GreaterOrEqual(t, sub.Attempts(), int64(3))
}

func TestSubscribe_FlatDelayOnDialFailure(t *testing.T) {
	const delay = 50 * time.Millisecond

	var mu sync.Mutex
	var stamps []time.Time
	service, _ := observeServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		http.Error(w, "device unreachable", http.StatusServiceUnavailable)
	})

	c := New(Config{Service: service, ReconnectDelay: delay})
	sub := c.Subscribe(context.Background(), "coap://[fe80::2]/dsp/points", func(Message) error { return nil })
	defer sub.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(stamps) >= 5
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < 5; i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond, "gap %d", i)
		// No exponential growth: every gap stays near the flat delay.
		assert.Less(t, gap, 8*delay, "gap %d", i)
	}
	assert.GreaterOrEqual(t, counterValue(t, c.metrics.ObserveReconnects), 4.0)
}

func TestSubscribe_StopWhileOpen(t *testing.T) {
	service, conns := observeServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Hold the channel open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(Config{Service: service, ReconnectDelay: 10 * time.Millisecond})
	sub := c.Subscribe(context.Background(), "coap://[fe80::2]/dsp/points", func(Message) error { return nil })

	require.Eventually(t, func() bool { return sub.State() == StateOpen }, 5*time.Second, 5*time.Millisecond)

	sub.Stop()
	sub.Stop()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.Equal(t, StateStopped, sub.State())

	before := conns.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, conns.Load(), "no reconnect after Stop")
}

func TestSubscribe_ContextCancelDuringDelay(t *testing.T) {
	service, _ := observeServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	c := New(Config{Service: service, ReconnectDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	sub := c.Subscribe(ctx, "coap://[fe80::2]/dsp/points", func(Message) error { return nil })

	require.Eventually(t, func() bool { return sub.State() == StateClosed }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop on context cancel")
	}
	assert.Equal(t, int64(1), sub.Attempts())
}

func TestSubscribe_BinaryFrames(t *testing.T) {
	payload, err := Encode(ContentCBOR, map[string]int{"points": 9})
	require.NoError(t, err)

	service, _ := observeServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.BinaryMessage, payload)
		time.Sleep(100 * time.Millisecond)
	})

	c := New(Config{Service: service, ReconnectDelay: time.Second})
	got := make(chan Message, 1)
	sub := c.Subscribe(context.Background(), "coap://[fe80::3]/dino/points", func(msg Message) error {
		select {
		case got <- msg:
		default:
		}
		return nil
	})
	defer sub.Stop()

	select {
	case msg := <-got:
		assert.True(t, msg.Binary)
		var v map[string]int
		require.NoError(t, Decode(msg.ContentType(), msg.Data, &v))
		assert.Equal(t, 9, v["points"])
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSubscribe_HandlerPanicKeepsChannel(t *testing.T) {
	service, _ := observeServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("boom"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("ok"))
		time.Sleep(100 * time.Millisecond)
	})

	c := New(Config{Service: service, ReconnectDelay: time.Second})
	got := make(chan string, 2)
	sub := c.Subscribe(context.Background(), "coap://h/x", func(msg Message) error {
		if string(msg.Data) == "boom" {
			panic("bad payload")
		}
		got <- string(msg.Data)
		return nil
	})
	defer sub.Stop()

	select {
	case s := <-got:
		assert.Equal(t, "ok", s)
	case <-time.After(5 * time.Second):
		t.Fatal("second message not delivered")
	}
	assert.Equal(t, int64(1), sub.Attempts())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
