// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// PrincipalIDKey is the context key for the authenticated principal
	PrincipalIDKey contextKey = "principal_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if principalID, ok := ctx.Value(PrincipalIDKey).(string); ok && principalID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("principal_id", principalID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// PaymentEvent logs payment ledger activity
func (l *Logger) PaymentEvent(event, reference string, amountCents int64, success bool, reason string) {
	if success {
		l.Info("payment_event",
			slog.String("event", event),
			slog.String("reference", reference),
			slog.Int64("amount_cents", amountCents),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("payment_event",
			slog.String("event", event),
			slog.String("reference", reference),
			slog.Int64("amount_cents", amountCents),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// JobEvent logs background job activity
func (l *Logger) JobEvent(job string, affected int, err error) {
	if err != nil {
		l.Error("job_event",
			slog.String("job", job),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("job_event",
		slog.String("job", job),
		slog.Int("affected", affected),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
