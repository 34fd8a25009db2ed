package middleware

import (
	"net/http"

	"github.com/screenscape/sync-server-go/internal/config"
	apperrors "github.com/screenscape/sync-server-go/internal/errors"
)

// BodyLimitMiddleware rejects oversized bodies up front when Content-Length
// declares them and caps the reader otherwise.
type BodyLimitMiddleware struct {
	limit int64
}

func NewBodyLimitMiddleware(limit int64) *BodyLimitMiddleware {
	if limit <= 0 {
		limit = config.MaxBodyBytes
	}
	return &BodyLimitMiddleware{limit: limit}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.limit {
			writeError(w, apperrors.PayloadTooLarge(m.limit))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, m.limit)
		next.ServeHTTP(w, r)
	})
}
