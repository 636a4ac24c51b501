package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan terminates a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer opens spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// observe wraps one service operation with tracing and metrics.
func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := time.Now()
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}
