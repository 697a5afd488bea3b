package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records an envelope accepted by a pipeline.
	RecordDispatch(ctx context.Context, eventName string)

	// RecordDelivery records one walk over an event's handlers.
	RecordDelivery(ctx context.Context, eventName string, invoked int, duration time.Duration)

	// RecordHandler records a single handler invocation and whether it faulted.
	RecordHandler(ctx context.Context, eventName, handlerID string, duration time.Duration, err error)

	// RecordDrop records an envelope that had no handlers.
	RecordDrop(ctx context.Context, eventName string)
}

type otelMetrics struct {
	dispatches      metric.Int64Counter
	deliveries      metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	invocations     metric.Int64Counter
	handlerLatency  metric.Float64Histogram
	faults          metric.Int64Counter
	drops           metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventbus")

	dispatches, err := meter.Int64Counter("eventbus.dispatches",
		metric.WithDescription("Number of envelopes accepted for delivery"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eventbus.deliveries",
		metric.WithDescription("Number of envelopes delivered to a handler bucket"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("eventbus.delivery.latency_ms",
		metric.WithDescription("Time spent walking an event's handlers in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invocations, err := meter.Int64Counter("eventbus.handler.invocations",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	handlerLatency, err := meter.Float64Histogram("eventbus.handler.latency_ms",
		metric.WithDescription("Handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	faults, err := meter.Int64Counter("eventbus.handler.faults",
		metric.WithDescription("Number of handler invocations that returned an error or panicked"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("eventbus.drops",
		metric.WithDescription("Number of envelopes with no registered handlers"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:      dispatches,
		deliveries:      deliveries,
		deliveryLatency: deliveryLatency,
		invocations:     invocations,
		handlerLatency:  handlerLatency,
		faults:          faults,
		drops:           drops,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider, so configure the provider
// first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, eventName string) {
	m.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventName)))
}

func (m *otelMetrics) RecordDelivery(ctx context.Context, eventName string, invoked int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("event", eventName))
	m.deliveries.Add(ctx, 1, attrs)
	m.deliveryLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *otelMetrics) RecordHandler(ctx context.Context, eventName, handlerID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event", eventName),
		attribute.String("handler", handlerID),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.handlerLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.faults.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordDrop(ctx context.Context, eventName string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventName)))
}
