package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/audit"
	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/util"
)

type contextKey string

const DeviceSessionContextKey contextKey = "deviceSession"

func GetDeviceSession(ctx context.Context) *model.DeviceSession {
	if session, ok := ctx.Value(DeviceSessionContextKey).(*model.DeviceSession); ok {
		return session
	}
	return nil
}

// WithDeviceSession is used by handlers' tests to skip the lookup.
func WithDeviceSession(ctx context.Context, session *model.DeviceSession) context.Context {
	return context.WithValue(ctx, DeviceSessionContextKey, session)
}

// DeviceAuthMiddleware resolves the session token minted at link time.
type DeviceAuthMiddleware struct {
	deviceRepo repository.DeviceSessionRepository
	now        func() time.Time
}

func NewDeviceAuthMiddleware(deviceRepo repository.DeviceSessionRepository) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{deviceRepo: deviceRepo, now: time.Now}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing session token"))
			return
		}

		tokenHash := util.HashToken(token)
		session, err := m.deviceRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("device auth: store error")
			writeError(w, apperrors.Storage(err))
			return
		}

		if session != nil && session.IsExpired(m.now()) {
			if err := m.deviceRepo.Delete(r.Context(), tokenHash); err != nil {
				log.Warn().Err(err).Msg("device auth: failed to delete expired session")
			}
			session = nil
		}

		if session != nil && !util.IsValidGuestID(session.GuestID) {
			log.Error().Msg("device auth: session carries a malformed guest id")
			session = nil
		}

		if session == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, apperrors.InvalidToken("Invalid or expired session token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithDeviceSession(r.Context(), session)))
	})
}

// extractToken prefers the Authorization header; EventSource cannot set
// headers, so ?token= is accepted as well.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return r.URL.Query().Get("token")
}
