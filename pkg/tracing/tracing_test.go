package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanCarriesTagsAndError(t *testing.T) {
	tr := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tr)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })

	parent, ctx := StartSpan(context.Background(), "parent")
	child, _ := StartSpan(ctx, "delta.create_order", opentracing.Tag{Key: "symbol", Value: "BTCUSD"})
	Finish(child, errors.New("boom"))
	Finish(parent, nil)

	spans := tr.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "delta.create_order", spans[0].OperationName)
	assert.Equal(t, "BTCUSD", spans[0].Tag("symbol"))
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Equal(t, spans[1].SpanContext.SpanID, spans[0].ParentID)
	assert.Nil(t, spans[1].Tag("error"))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "const", Config{}.sampler().Type)
	assert.Equal(t, "const", Config{SampleRate: 1}.sampler().Type)
	s := Config{SampleRate: 0.25}.sampler()
	assert.Equal(t, "probabilistic", s.Type)
	assert.Equal(t, 0.25, s.Param)
}
