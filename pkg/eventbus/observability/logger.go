// Package observability provides logging, metrics, and tracing hooks for the
// event bus.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry and a Prometheus collector
//   - Tracing via OpenTelemetry
//
// Everything here is opt-in. The no-op implementations are used when a
// feature is disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger scopes a logger to a single envelope.
func EnrichLogger(logger *slog.Logger, eventName, envelopeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event", eventName),
		slog.String("envelope_id", envelopeID),
	)
}

// LogRegister logs a handler being added to the registry.
func LogRegister(logger *slog.Logger, eventName, handlerID string) {
	if logger == nil {
		return
	}
	logger.Debug("handler registered",
		slog.String("event", eventName),
		slog.String("handler", handlerID),
	)
}

// LogUnregister logs a handler being removed from the registry.
func LogUnregister(logger *slog.Logger, eventName, handlerID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("handler removed",
		slog.String("event", eventName),
		slog.String("handler", handlerID),
		slog.String("reason", reason),
	)
}

// LogDispatch logs an envelope entering the pipeline.
func LogDispatch(logger *slog.Logger, eventName, envelopeID string) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event", eventName),
		slog.String("envelope_id", envelopeID),
	)
}

// LogDelivery logs the end of a walk over one bucket.
func LogDelivery(logger *slog.Logger, eventName, envelopeID string, invoked int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event delivered",
		slog.String("event", eventName),
		slog.String("envelope_id", envelopeID),
		slog.Int("handlers", invoked),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDrop logs an envelope with no registered handlers.
func LogDrop(logger *slog.Logger, eventName, envelopeID string) {
	if logger == nil {
		return
	}
	logger.Debug("no handlers for event",
		slog.String("event", eventName),
		slog.String("envelope_id", envelopeID),
	)
}

// LogHandlerFault logs a handler that returned an error or panicked. The
// logger is expected to come from EnrichLogger.
func LogHandlerFault(logger *slog.Logger, handlerID string, err error, panicked bool) {
	if logger == nil {
		return
	}
	logger.Error("event handler failed",
		slog.String("handler", handlerID),
		slog.String("error", err.Error()),
		slog.Bool("panic", panicked),
	)
}

// LogMalformedEnvelope logs wire input that could not be parsed.
func LogMalformedEnvelope(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Debug("dropping malformed envelope",
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal write failure (non-fatal).
func LogJournalError(logger *slog.Logger, eventName, handlerID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("event", eventName),
		slog.String("handler", handlerID),
		slog.String("error", err.Error()),
	)
}

// LogPipelineClosed logs the worker exiting after a drain.
func LogPipelineClosed(logger *slog.Logger, delivered uint64) {
	if logger == nil {
		return
	}
	logger.Info("delivery pipeline stopped",
		slog.Uint64("delivered", delivered),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
