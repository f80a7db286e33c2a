package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
)

// HTTPRecorder writes an audit entry for every state-changing request that
// passes through a router group. Reads are not audited.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// Mutations returns the chi middleware. The entry is written after the
// handler returns, with the action and resource derived from the route.
func (r HTTPRecorder) Mutations() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled || readOnly(req.Method) {
				next.ServeHTTP(w, req)
				return
			}
			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			// the route context is only complete once routing has finished
			ctx := req.Context()
			var resourceID string
			if rc := chi.RouteContext(ctx); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" && obs.RoutePatternFromContext(ctx) == "" {
					ctx = obs.WithRoutePattern(ctx, pattern)
				}
				if n := len(rc.URLParams.Values); n > 0 {
					resourceID = rc.URLParams.Values[n-1]
				}
			}

			err := r.Service.Record(ctx, actorOf(req), "", "", resourceID, req.WithContext(ctx), rec.Status(), nil)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func actorOf(req *http.Request) Actor {
	if adminID, ok := common.AdminID(req.Context()); ok {
		return Actor{Kind: ActorKindAdmin, AdminID: &adminID}
	}
	return Actor{Kind: ActorKindAnonymous}
}

func readOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
