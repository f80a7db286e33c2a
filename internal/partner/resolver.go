package partner

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
)

type contextKey string

const partnerContextKey contextKey = "partner"

// WithPartner stores the resolved partner inside the context.
func WithPartner(ctx context.Context, p Partner) context.Context {
	obs.SetPartner(ctx, p.Slug)
	ctx = common.WithPartnerSlug(ctx, p.Slug)
	return context.WithValue(ctx, partnerContextKey, p)
}

// FromContext returns the partner resolved for the request, if any.
func FromContext(ctx context.Context) (Partner, bool) {
	p, ok := ctx.Value(partnerContextKey).(Partner)
	return p, ok
}

type slugLookup interface {
	BySlug(ctx context.Context, slug string) (Partner, error)
}

// Resolver finds the partner a public request belongs to. The slug comes from
// the {partner} URL parameter, then the configured header, then the request
// subdomain under RootDomain, then DefaultSlug.
type Resolver struct {
	Partners    slugLookup
	URLParam    string
	HeaderName  string
	RootDomain  string
	DefaultSlug string
}

// NewResolver returns a resolver reading the {partner} URL parameter first.
func NewResolver(partners slugLookup, headerName, rootDomain, defaultSlug string) *Resolver {
	if headerName == "" {
		headerName = "X-Partner-Slug"
	}
	return &Resolver{
		Partners:    partners,
		URLParam:    "partner",
		HeaderName:  headerName,
		RootDomain:  strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultSlug: strings.TrimSpace(defaultSlug),
	}
}

// Middleware loads the active partner and stores it on the request context.
// Unknown or inactive partners get a 404.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		slug := r.Slug(req)
		if slug == "" {
			slug = r.DefaultSlug
		}
		p, err := r.Partners.BySlug(req.Context(), slug)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithPartner(req.Context(), p)))
	})
}

// Slug extracts the partner slug from the request without consulting storage.
func (r *Resolver) Slug(req *http.Request) string {
	if r.URLParam != "" {
		if slug := strings.TrimSpace(chi.URLParam(req, r.URLParam)); slug != "" {
			return strings.ToLower(slug)
		}
	}
	if slug := strings.TrimSpace(req.Header.Get(r.HeaderName)); slug != "" {
		return strings.ToLower(slug)
	}
	return r.subdomain(hostWithoutPort(req.Host))
}

func (r *Resolver) subdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	// only resolve subdomains of a configured root; bare hosts like
	// localhost or an IP would otherwise be read as slugs
	if host == "" || r.RootDomain == "" || host == r.RootDomain {
		return ""
	}
	suffix := "." + r.RootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	labels := strings.Split(strings.TrimSuffix(host, suffix), ".")
	return labels[len(labels)-1]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(hostport, "[]")
}
