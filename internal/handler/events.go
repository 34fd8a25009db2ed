package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/middleware"
	"github.com/screenscape/sync-server-go/internal/sse"
)

// reconnectDelayMs is sent as the SSE retry hint.
const reconnectDelayMs = 3000

type EventsHandler struct {
	broker            *sse.Broker
	heartbeatInterval time.Duration
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{
		broker:            broker,
		heartbeatInterval: sse.HeartbeatInterval,
	}
}

// GET /api/user/events
//
// Streams userdata_updated events for the caller's guest until the client
// disconnects or the server shuts down.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDeviceSession(r.Context())
	if device == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("streaming unsupported"))
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(device.GuestID)
	defer h.broker.Unsubscribe(client)

	logger := log.With().Str("guestId", device.GuestID).Str("deviceName", device.DeviceName).Logger()
	logger.Info().Msg("sse stream opened")

	fmt.Fprintf(w, "retry: %d\n\n", reconnectDelayMs)
	hello, err := sse.NewEvent("connected", map[string]string{
		"guestId":    device.GuestID,
		"deviceName": device.DeviceName,
	})
	if err != nil || writeEvent(w, flusher, hello) != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info().Msg("sse stream closed by client")
			return
		case <-client.Done:
			logger.Info().Msg("sse stream closed by server")
			return
		case event := <-client.Events:
			if err := writeEvent(w, flusher, event); err != nil {
				logger.Warn().Err(err).Msg("failed to write event")
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
