package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span represents a tracing span with performance optimizations
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan creates a new optimized span
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched for performance)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetStatus sets the span status
func (s *Span) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End ends the span
func (s *Span) End() {
	// Batch set attributes for performance
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}

	s.span.End()
}

// PoolTracer provides pool-specific tracing utilities
type PoolTracer struct {
	poolName string
	tracer   trace.Tracer
}

// NewPoolTracer creates a new pool tracer
func NewPoolTracer(poolName string) *PoolTracer {
	return &PoolTracer{
		poolName: poolName,
		tracer:   tracer,
	}
}

// StartSpan starts a pool-specific span
func (pt *PoolTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	operationName := fmt.Sprintf("pool.%s.%s", pt.poolName, operation)
	ctx, span := NewSpan(ctx, operationName)

	// Add pool-specific attributes
	span.SetAttribute("pool.name", pt.poolName)
	span.SetAttribute("pool.operation", operation)

	return ctx, span
}

// TraceLoan traces an acquire/use/release cycle
func (pt *PoolTracer) TraceLoan(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := pt.StartSpan(ctx, "loan")
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	span.SetAttribute("loan.duration_ms", duration.Milliseconds())

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
		span.SetAttribute("error.message", err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TraceSweep traces a single deferred-return sweep pass
func (pt *PoolTracer) TraceSweep(ctx context.Context, migrated int) {
	_, span := pt.StartSpan(ctx, "sweep")
	defer span.End()

	span.SetAttribute("sweep.migrated", migrated)
}
