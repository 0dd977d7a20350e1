package tracing

import (
	"context"
	"fmt"

	"signal_trader/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	ServiceName string
	Host        string
	Port        int
	// SampleRate 0 или >=1: пишем все спаны
	SampleRate float64
}

func (c Config) sampler() *jaegercfg.SamplerConfig {
	if c.SampleRate <= 0 || c.SampleRate >= 1 {
		return &jaegercfg.SamplerConfig{Type: "const", Param: 1}
	}
	return &jaegercfg.SamplerConfig{Type: "probabilistic", Param: c.SampleRate}
}

// Init ставит jaeger глобальным трейсером. Пока его не вызвали,
// спаны уходят в no-op трейсер opentracing.
func Init(conf Config) (func(), error) {
	cfg := &jaegercfg.Configuration{
		ServiceName: conf.ServiceName,
		Sampler:     conf.sampler(),
		Reporter: &jaegercfg.ReporterConfig{
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jaegercfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, fmt.Errorf("jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)

	return func() {
		if err := closer.Close(); err != nil {
			logger.Error("close jaeger tracer: %v", err)
		}
	}, nil
}

// StartSpan открывает дочерний спан от того, что лежит в ctx.
func StartSpan(ctx context.Context, op string, tags ...opentracing.Tag) (opentracing.Span, context.Context) {
	opts := make([]opentracing.StartSpanOption, 0, len(tags))
	for _, t := range tags {
		opts = append(opts, t)
	}
	return opentracing.StartSpanFromContext(ctx, op, opts...)
}

func Finish(span opentracing.Span, err error) {
	if err != nil {
		ext.LogError(span, err)
	}
	span.Finish()
}
