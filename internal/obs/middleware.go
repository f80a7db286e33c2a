package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatusRecorder remembers the first status code and counts body bytes.
type StatusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w}
}

func (sr *StatusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *StatusRecorder) Write(p []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(p)
	sr.written += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *StatusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// Status is the status sent to the client, 200 if the handler never set one.
func (sr *StatusRecorder) Status() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

func (sr *StatusRecorder) BytesWritten() int64 { return sr.written }

// HTTPObs feeds HTTPMetrics from every request.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.Metrics.InFlight.Inc()
		defer o.Metrics.InFlight.Dec()

		rec := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		// raw paths of unmatched requests would explode label cardinality
		route, ok := matchedRoute(r)
		if !ok {
			route = "unknown"
		}
		o.Metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		o.Metrics.Latency.WithLabelValues(r.Method, route).Observe(DurationMillis(elapsed))
	})
}

// RoutePatternMiddleware stores the chi pattern matched so far in the context.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			r = r.WithContext(WithRoutePattern(r.Context(), rc.RoutePattern()))
		}
		next.ServeHTTP(w, r)
	})
}

// TracingMiddleware opens a server span per request. The span is renamed to
// the route pattern once routing has completed.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("costnavigator/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		route, ok := matchedRoute(r)
		if !ok {
			route = r.URL.Path
		}
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", rec.Status()),
		)
		if rec.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.Status()))
		}
	})
}

func matchedRoute(r *http.Request) (string, bool) {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route, true
	}
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern(), true
	}
	return "", false
}
