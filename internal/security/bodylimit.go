package security

import (
	"net/http"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
)

// BodyLimit caps request payloads at Max bytes. A declared Content-Length over
// the cap is refused up front; otherwise the body is wrapped so the decoder
// fails with http.MaxBytesError once the cap is crossed.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodeTooLarge, "request entity too large", nil)
			return
		}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}
