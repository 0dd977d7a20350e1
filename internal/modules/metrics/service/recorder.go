package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects trading metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	ticks          prometheus.Counter
	closes         *prometheus.CounterVec
	signals        *prometheus.CounterVec
	orders         *prometheus.CounterVec
	tracked        prometheus.Gauge
	livePrice      prometheus.Gauge
	gatewayLatency *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "trader_engine_ticks_total",
			Help: "Trailing engine ticks",
		}),
		closes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_position_closes_total",
			Help: "Forced position closes by rule and result",
		}, []string{"rule", "result"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Processed signals by kind and outcome",
		}, []string{"kind", "outcome"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Order mutations by type and result",
		}, []string{"type", "result"}),
		tracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_positions_tracked",
			Help: "Positions with trailing state",
		}),
		livePrice: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_live_price",
			Help: "Last price seen by the engine",
		}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trader_gateway_request_seconds",
			Help:    "Exchange request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (r *Recorder) EngineTick() {
	if r == nil {
		return
	}
	r.ticks.Inc()
}

func (r *Recorder) PositionsTracked(n int) {
	if r == nil {
		return
	}
	r.tracked.Set(float64(n))
}

func (r *Recorder) LivePrice(px float64) {
	if r == nil {
		return
	}
	r.livePrice.Set(px)
}

func (r *Recorder) PositionClose(rule string, ok bool) {
	if r == nil {
		return
	}
	r.closes.WithLabelValues(rule, result(ok)).Inc()
}

func (r *Recorder) Signal(kind, outcome string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) Order(typ string, ok bool) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(typ, result(ok)).Inc()
}

func (r *Recorder) ObserveGateway(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.gatewayLatency.WithLabelValues(op).Observe(d.Seconds())
}
