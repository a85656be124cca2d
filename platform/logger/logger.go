// Package logger wraps slog with the event helpers the service logs through.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger with named helpers for recurring events, so the
// same event always carries the same keys.
type Logger struct {
	*slog.Logger
}

// New logs to stdout. Development and test environments get debug-level
// text output; everything else gets info-level JSON.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler
	switch strings.ToLower(env) {
	case "development", "test":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard drops everything; tests use it.
func Discard() *Logger {
	return NewWithWriter("test", io.Discard)
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request", httpAttrs(method, path, status, clientIP), slog.Float64("latency_ms", latencyMs))
}

func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error", httpAttrs(method, path, status, clientIP), errAttr(err))
}

func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error", slog.String("operation", operation), errAttr(err))
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded", slog.String("client_ip", clientIP), slog.String("path", path))
}

// StreamOpened records a push connection entering the registry.
func (l *Logger) StreamOpened(transport, connectionID, subscriberID string) {
	l.Debug("stream_opened",
		slog.String("transport", transport),
		slog.String("connection_id", connectionID),
		slog.String("subscriber_id", subscriberID),
	)
}

// StreamClosed records a push connection leaving the registry.
func (l *Logger) StreamClosed(connectionID, subscriberID, reason string) {
	l.Debug("stream_closed",
		slog.String("connection_id", connectionID),
		slog.String("subscriber_id", subscriberID),
		slog.String("reason", reason),
	)
}

// DeliveryDropped records a sink that refused an event and was torn down.
func (l *Logger) DeliveryDropped(connectionID, eventKind string, err error) {
	l.Warn("delivery_dropped",
		slog.String("connection_id", connectionID),
		slog.String("event_kind", eventKind),
		errAttr(err),
	)
}

// IntakeFallback records a contact form submission the CRM did not accept
// even though the visitor was told it arrived.
func (l *Logger) IntakeFallback(source, email string, err error) {
	l.Error("intake_fallback", slog.String("source", source), slog.String("email", email), errAttr(err))
}

func httpAttrs(method, path string, status int, clientIP string) slog.Attr {
	return slog.Group("http",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("client_ip", clientIP),
	)
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
