package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// NewLogger builds the process logger. format "console" (or "text") gives
// human readable output, anything else JSON. Unknown levels fall back to info.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(logOutput(format)).With().Timestamp().Str("service", "costnavigator").Logger()
}

func logOutput(format string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		return os.Stdout
	}
}

// RequestLogger writes one structured line per HTTP request.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		start := time.Now()
		ctx, info := WithRequestInfo(r.Context())
		next.ServeHTTP(recorder, r.WithContext(ctx))

		status := recorder.Status()
		route, ok := matchedRoute(r)
		if !ok {
			route = r.URL.Path
		}
		evt := l.Logger.WithLevel(levelFor(status)).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int64("bytes", recorder.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context()))

		if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
			evt = evt.Str("trace_id", spanCtx.TraceID().String()).Str("span_id", spanCtx.SpanID().String())
		}
		if adminID := info.AdminID(); adminID != "" {
			evt = evt.Str("admin_id", adminID)
		}
		if slug := info.Partner(); slug != "" {
			evt = evt.Str("partner", slug)
		}
		if ip := common.ClientIP(r); ip != "" {
			evt = evt.Str("client_ip", ip)
		}
		if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Msg("http_request")
	})
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
