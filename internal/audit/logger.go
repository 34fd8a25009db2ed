// Package audit writes security-relevant events for the link flow and device
// sessions to the global zerolog logger, tagged audit=security.
package audit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLinkCodeIssued    EventType = "link_code_issued"
	EventLinkCodeExhausted EventType = "link_code_exhausted"
	EventLinkCodeRejected  EventType = "link_code_rejected"
	EventDeviceLinked      EventType = "device_linked"
	EventUserDataUpdated   EventType = "user_data_updated"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
	EventAuthFailure       EventType = "auth_failure"
)

type Event struct {
	Type      EventType
	GuestID   string
	IP        string
	UserAgent string
	// RequestID defaults to chi's request id from ctx.
	RequestID string
	Details   map[string]any
}

func Log(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = middleware.GetReqID(ctx)
	}

	e := log.Info().
		Str("audit", "security").
		Str("event_type", string(event.Type))

	optional := map[string]string{
		"guest_id":   event.GuestID,
		"ip":         event.IP,
		"user_agent": event.UserAgent,
		"request_id": event.RequestID,
	}
	for key, value := range optional {
		if value != "" {
			e = e.Str(key, value)
		}
	}

	if len(event.Details) > 0 {
		e = e.Fields(event.Details)
	}
	e.Timestamp().Msg("security audit event")
}

// LogFromRequest fills the client fields from r. RealIP has already
// rewritten RemoteAddr when it runs in front of the handler.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
