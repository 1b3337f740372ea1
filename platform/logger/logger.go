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
	// PhoneKey is the context key for the normalized phone of the unit of work
	PhoneKey contextKey = "phone"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
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
// Supports request_id, phone, and user_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if phone, ok := ctx.Value(PhoneKey).(string); ok && phone != "" {
		newLogger = newLogger.WithPhone(phone)
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		newLogger = newLogger.WithUserID(userID)
	}

	return newLogger
}

// WithPhone returns a logger scoped to a normalized phone number.
func (l *Logger) WithPhone(phone string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("phone", phone)),
	}
}

// WithUserID returns a logger with user ID
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("user_id", userID)),
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

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// DeliveryAttempt logs one step of the outbound delivery chain.
func (l *Logger) DeliveryAttempt(method, phone string, success bool, reason string) {
	if success {
		l.Info("delivery_attempt",
			slog.String("method", method),
			slog.String("phone", phone),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("delivery_attempt",
			slog.String("method", method),
			slog.String("phone", phone),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// ComplianceEvent logs compliance gate outcomes (opt-out, opt-in, suppression).
func (l *Logger) ComplianceEvent(event, phone, channel string) {
	l.Info("compliance_event",
		slog.String("event", event),
		slog.String("phone", phone),
		slog.String("channel", channel),
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
func (l *Logger) RateLimitExceeded(key, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("key", key),
		slog.String("path", path),
	)
}
