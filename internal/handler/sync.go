package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/service"
)

type SyncHandler struct {
	syncService *service.SyncService
}

func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

func (h *SyncHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/session", h.CreateSession)
	r.Put("/session/{syncToken}", h.PushPreferences)
	r.Get("/poll", h.Poll)
	r.MethodNotAllowed(methodNotAllowed)

	return r
}

type preferencesRequest struct {
	Preferences json.RawMessage `json:"preferences"`
}

// POST /api/sync/session
func (h *SyncHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.syncService.CreateSession(r.Context(), req.Preferences)
	if err != nil {
		logServerError(err, "failed to create sync session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PUT /api/sync/session/{syncToken}
func (h *SyncHandler) PushPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	lastUpdated, err := h.syncService.PushPreferences(r.Context(), chi.URLParam(r, "syncToken"), req.Preferences)
	if err != nil {
		logServerError(err, "failed to push preferences")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"lastUpdated": lastUpdated})
}

// GET /api/sync/poll?syncToken=&deviceToken=&lastKnownUpdate=
func (h *SyncHandler) Poll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var lastKnownUpdate int64
	if raw := query.Get("lastKnownUpdate"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apperrors.InvalidInput("lastKnownUpdate", "must be a millisecond timestamp"))
			return
		}
		lastKnownUpdate = parsed
	}

	result, err := h.syncService.Poll(r.Context(), service.PollParams{
		SyncToken:       query.Get("syncToken"),
		DeviceToken:     query.Get("deviceToken"),
		LastKnownUpdate: lastKnownUpdate,
	})
	if err != nil {
		logServerError(err, "failed to poll sync session")
		writeError(w, err)
		return
	}

	if !result.Changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func logServerError(err error, msg string) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInternal, apperrors.ErrCodeStorage, apperrors.ErrCodeStorageInconsistency:
		log.Error().Err(err).Msg(msg)
	}
}
