package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type routePatternKey struct{}

type requestInfoKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the pattern stored by WithRoutePattern.
func RoutePatternFromContext(ctx context.Context) string {
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// RequestInfo carries identifiers resolved deep in the handler chain back to
// the outer logging middleware, which only sees its own request context.
type RequestInfo struct {
	mu      sync.Mutex
	partner string
	adminID string
}

// WithRequestInfo returns ctx carrying a RequestInfo, reusing an existing one.
func WithRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	if info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		return ctx, info
	}
	info := &RequestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// Partner returns the recorded partner slug.
func (i *RequestInfo) Partner() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.partner
}

// AdminID returns the recorded admin id.
func (i *RequestInfo) AdminID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.adminID
}

// SetPartner records the partner serving the request and tags the active span.
func SetPartner(ctx context.Context, slug string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		info.mu.Lock()
		info.partner = slug
		info.mu.Unlock()
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("partner.slug", slug))
}

// SetAdmin records the authenticated admin and tags the active span.
func SetAdmin(ctx context.Context, adminID string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		info.mu.Lock()
		info.adminID = adminID
		info.mu.Unlock()
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("admin.id", adminID))
}
