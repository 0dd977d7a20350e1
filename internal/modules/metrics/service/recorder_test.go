package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.EngineTick()
	r.EngineTick()
	r.PositionClose("lock_90", true)
	r.Signal("buy", "success")
	r.Order("limit", false)
	r.PositionsTracked(3)
	r.LivePrice(101.5)
	r.ObserveGateway("fetch_positions", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.closes.WithLabelValues("lock_90", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orders.WithLabelValues("limit", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.tracked))
	assert.Equal(t, 101.5, testutil.ToFloat64(r.livePrice))
	assert.Equal(t, 1, testutil.CollectAndCount(r.gatewayLatency))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.EngineTick()
		r.PositionClose("fixed_stop", false)
		r.ObserveGateway("x", time.Second)
	})
}
