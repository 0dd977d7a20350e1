package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"signal_trader/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type Options struct {
	WSURL  string // wss://fstream.binance.com/ws
	Symbol string // BTCUSDT

	BackoffBase time.Duration
	BackoffMax  time.Duration
	PingEvery   time.Duration
	// OnConnState получает true/false при подключении/обрыве.
	OnConnState func(connected bool)
	// OnPrice вызывается на каждое обновление цены.
	OnPrice func(at time.Time)
}

// Feed keeps the last traded price of one symbol from the aggTrade stream.
type Feed struct {
	url    string
	opts   Options
	dialer *websocket.Dialer

	mu    sync.RWMutex
	price decimal.Decimal
	has   bool
	conn  *websocket.Conn

	first     chan struct{}
	firstOnce sync.Once

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type aggTrade struct {
	Event string `json:"e"`
	Price string `json:"p"`
}

func New(opts Options) *Feed {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	return &Feed{
		url:    strings.TrimRight(opts.WSURL, "/") + "/" + strings.ToLower(opts.Symbol) + "@aggTrade",
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		first:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (f *Feed) URL() string { return f.url }

// Price returns the last price; ok is false until the first one arrives.
func (f *Feed) Price() (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price, f.has
}

func (f *Feed) set(px decimal.Decimal) {
	f.mu.Lock()
	f.price, f.has = px, true
	f.mu.Unlock()
	f.firstOnce.Do(func() { close(f.first) })
	if f.opts.OnPrice != nil {
		f.opts.OnPrice(time.Now())
	}
}

// Seed sets px only if no price has been seen yet.
func (f *Feed) Seed(px decimal.Decimal) bool {
	f.mu.Lock()
	if f.has || !px.IsPositive() {
		f.mu.Unlock()
		return false
	}
	f.price, f.has = px, true
	f.mu.Unlock()
	f.firstOnce.Do(func() { close(f.first) })
	return true
}

// WaitFirst blocks until the first price, the timeout or ctx cancel.
func (f *Feed) WaitFirst(ctx context.Context, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-f.first:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Start launches the reconnecting stream. Calling it twice does nothing.
func (f *Feed) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		f.cancel = cancel
		go func() {
			defer close(f.done)
			f.loop(ctx)
		}()
	})
}

// Stop closes the stream and waits for the loop to exit. Safe to call many times.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		started := false
		f.startOnce.Do(func() {}) // после Stop старт уже невозможен
		if f.cancel != nil {
			started = true
			f.cancel()
		}
		f.mu.Lock()
		if f.conn != nil {
			_ = f.conn.Close()
		}
		f.mu.Unlock()
		if started {
			<-f.done
		}
		logger.Info("[FEED] stopped")
	})
}

func (f *Feed) loop(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			attempt++
			wait := f.backoff(attempt)
			logger.Warn("[FEED] dial %s failed (attempt %d), retry in %s: %v", f.url, attempt, wait, err)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		attempt = 0
		f.setConn(conn)
		logger.Info("[FEED] connected %s", f.url)

		err = f.read(ctx, conn)
		f.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Warn("[FEED] stream dropped: %v", err)

		attempt++
		if !sleep(ctx, f.backoff(attempt)) {
			return
		}
	}
}

func (f *Feed) read(ctx context.Context, conn *websocket.Conn) error {
	readTimeout := 4 * f.opts.PingEvery
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(f.opts.PingEvery)
		defer t.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var tr aggTrade
		if err := sonic.Unmarshal(msg, &tr); err != nil || tr.Price == "" {
			continue
		}
		px, err := decimal.NewFromString(tr.Price)
		if err != nil || !px.IsPositive() {
			logger.Debug("[FEED] bad price %q", tr.Price)
			continue
		}
		f.set(px)
	}
}

func (f *Feed) setConn(c *websocket.Conn) {
	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()
	if f.opts.OnConnState != nil {
		f.opts.OnConnState(c != nil)
	}
}

// Connected reports whether the stream is up right now.
func (f *Feed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.conn != nil
}

// backoff: base * 2^(attempt-1), не больше max.
func (f *Feed) backoff(attempt int) time.Duration {
	d := f.opts.BackoffBase
	for i := 1; i < attempt && d < f.opts.BackoffMax; i++ {
		d *= 2
	}
	if d > f.opts.BackoffMax {
		d = f.opts.BackoffMax
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
