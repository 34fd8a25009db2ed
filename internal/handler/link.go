package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/audit"
	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/service"
)

type LinkHandler struct {
	linkService *service.LinkService
}

func NewLinkHandler(linkService *service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

func (h *LinkHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.CreateLinkCode)
	r.Post("/device", h.LinkDevice)
	r.MethodNotAllowed(methodNotAllowed)

	return r
}

type createLinkCodeRequest struct {
	DeviceName string `json:"deviceName"`
}

type linkDeviceRequest struct {
	LinkCode   string `json:"linkCode"`
	DeviceName string `json:"deviceName"`
}

// POST /api/link/create
func (h *LinkHandler) CreateLinkCode(w http.ResponseWriter, r *http.Request) {
	var req createLinkCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.linkService.CreateLinkCode(r.Context(), req.DeviceName)
	if err != nil {
		log.Error().Err(err).Msg("failed to create link code")
		if apperrors.IsCode(err, apperrors.ErrCodeCodeGenerationExhausted) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLinkCodeExhausted})
		}
		writeError(w, apperrors.LinkCreationFailed().WithCause(err))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventLinkCodeIssued,
		GuestID: result.GuestID,
	})

	writeJSON(w, http.StatusOK, result)
}

// POST /api/link/device
func (h *LinkHandler) LinkDevice(w http.ResponseWriter, r *http.Request) {
	var req linkDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.linkService.LinkDevice(r.Context(), req.LinkCode, req.DeviceName)
	if err != nil {
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodeNotFound, apperrors.ErrCodeInvalidInput:
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLinkCodeRejected})
		default:
			log.Error().Err(err).Msg("failed to link device")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventDeviceLinked,
		GuestID: result.GuestID,
		Details: map[string]any{"deviceName": result.DeviceName},
	})

	writeJSON(w, http.StatusOK, result)
}
