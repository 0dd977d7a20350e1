package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer отдаёт по соединению заранее заданные кадры и закрывает его.
func wsServer(t *testing.T, sessions ...[]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/btcusdt@aggTrade" {
			http.NotFound(w, r)
			return
		}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := int(conns.Add(1)) - 1
		if n >= len(sessions) {
			// последняя сессия висит, пока клиент не уйдёт
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}
		for _, frame := range sessions[n] {
			_ = c.WriteMessage(websocket.TextMessage, []byte(frame))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func newFeed(srv *httptest.Server, onConn func(bool)) *Feed {
	return New(Options{
		WSURL:       wsURL(srv),
		Symbol:      "BTCUSDT",
		BackoffBase: 5 * time.Millisecond,
		BackoffMax:  20 * time.Millisecond,
		PingEvery:   time.Second,
		OnConnState: onConn,
	})
}

func TestURLBuilt(t *testing.T) {
	f := New(Options{WSURL: "wss://fstream.binance.com/ws/", Symbol: "BTCUSDT"})
	assert.Equal(t, "wss://fstream.binance.com/ws/btcusdt@aggTrade", f.URL())
}

func TestPriceAbsentUntilFirstTrade(t *testing.T) {
	f := New(Options{WSURL: "ws://127.0.0.1:1", Symbol: "BTCUSDT"})
	_, ok := f.Price()
	assert.False(t, ok)
	assert.False(t, f.WaitFirst(context.Background(), 10*time.Millisecond))
}

func TestStreamsPriceAndSkipsGarbage(t *testing.T) {
	srv, _ := wsServer(t, []string{
		`not json`,
		`{"e":"aggTrade","p":"abc"}`,
		`{"e":"aggTrade","p":"94000.10","q":"0.01"}`,
	}, []string{})

	var mu sync.Mutex
	var states []bool
	f := newFeed(srv, func(c bool) {
		mu.Lock()
		states = append(states, c)
		mu.Unlock()
	})
	f.Start(context.Background())
	defer f.Stop()

	require.True(t, f.WaitFirst(context.Background(), 2*time.Second))
	px, ok := f.Price()
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("94000.10").Equal(px))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.True(t, states[0])
}

func TestReconnectsAfterDrop(t *testing.T) {
	srv, conns := wsServer(t,
		[]string{`{"e":"aggTrade","p":"100"}`},
		[]string{`{"e":"aggTrade","p":"101"}`},
	)
	f := newFeed(srv, nil)
	f.Start(context.Background())
	defer f.Stop()

	require.Eventually(t, func() bool {
		px, ok := f.Price()
		return ok && px.Equal(decimal.NewFromInt(101))
	}, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestStopIsIdempotent(t *testing.T) {
	srv, _ := wsServer(t)
	f := newFeed(srv, nil)
	f.Start(context.Background())

	require.Eventually(t, f.Connected, 2*time.Second, 5*time.Millisecond)
	f.Stop()
	f.Stop()
	assert.False(t, f.Connected())
}

func TestStopWithoutStart(t *testing.T) {
	f := New(Options{WSURL: "ws://127.0.0.1:1", Symbol: "BTCUSDT"})
	f.Stop()
	f.Start(context.Background())
	f.Stop()
}

func TestSeedDoesNotOverrideStream(t *testing.T) {
	f := New(Options{WSURL: "ws://127.0.0.1:1", Symbol: "BTCUSDT"})
	assert.True(t, f.Seed(decimal.NewFromInt(100)))
	assert.True(t, f.WaitFirst(context.Background(), time.Millisecond))

	f.set(decimal.NewFromInt(105))
	assert.False(t, f.Seed(decimal.NewFromInt(90)))

	px, _ := f.Price()
	assert.Equal(t, "105", px.String())
}

func TestBackoffCapped(t *testing.T) {
	f := New(Options{WSURL: "ws://x", Symbol: "BTCUSDT"})
	assert.Equal(t, 500*time.Millisecond, f.backoff(1))
	assert.Equal(t, time.Second, f.backoff(2))
	assert.Equal(t, 4*time.Second, f.backoff(4))
	assert.Equal(t, 30*time.Second, f.backoff(20))
}

func TestSeedFromREST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/ticker/price") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"94123.40","time":1714000000000}`))
	}))
	defer srv.Close()

	f := New(Options{WSURL: "ws://127.0.0.1:1", Symbol: "BTCUSDT"})
	require.NoError(t, f.SeedFromREST(context.Background(), NewSeedClient(srv.URL)))

	px, ok := f.Price()
	require.True(t, ok)
	assert.Equal(t, "94123.4", px.String())
}

func TestSeedFromRESTFailureLeavesFeedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Options{WSURL: "ws://127.0.0.1:1", Symbol: "BTCUSDT"})
	assert.Error(t, f.SeedFromREST(context.Background(), NewSeedClient(srv.URL)))
	_, ok := f.Price()
	assert.False(t, ok)
}

func TestOnPriceFiresForStreamOnly(t *testing.T) {
	var hits atomic.Int32
	f := New(Options{
		WSURL:   "ws://127.0.0.1:1",
		Symbol:  "BTCUSDT",
		OnPrice: func(time.Time) { hits.Add(1) },
	})

	assert.True(t, f.Seed(decimal.NewFromInt(100)))
	assert.Equal(t, int32(0), hits.Load())

	f.set(decimal.NewFromInt(101))
	assert.Equal(t, int32(1), hits.Load())
}
