package log

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"financify/internal/core"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// Middleware stores logger in every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the request logger, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}

// RequestIDMiddleware attaches the request ID to the context logger.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ErrorType classifies err into the engine's error taxonomy.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrUnavailable):
		return ErrorTypeUnavailable
	default:
		return ErrorTypeInternal
	}
}

// StructuredLogger emits the engine's standard log records.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a finished request; 4xx at Warn and 5xx at Error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogMutation records a committed ledger change at Info.
func (sl *StructuredLogger) LogMutation(ctx context.Context, component, op string, fields LogFields) {
	sl.logger.WithComponent(component).InfoContext(ctx, "Ledger mutation committed",
		fields.WithOperation(op).ToSlice()...)
}

// LogError logs a failed operation. Validation and not-found failures are
// caller mistakes and go to Warn; everything else to Error.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, op string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	kind := ErrorType(err)
	fields = fields.WithError(err).WithErrorType(kind).WithOperation(op)

	level := slog.LevelError
	if kind == ErrorTypeValidation || kind == ErrorTypeNotFound {
		level = slog.LevelWarn
	}
	sl.logger.WithComponent(component).Log(ctx, level, msg, fields.ToSlice()...)
}
