package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/screenscape/sync-server-go/internal/audit"
	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/middleware"
	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/service"
)

// UserHandler serves the data of the guest behind an authenticated device.
type UserHandler struct {
	userDataService *service.UserDataService
}

func NewUserHandler(userDataService *service.UserDataService) *UserHandler {
	return &UserHandler{userDataService: userDataService}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/data", h.GetData)
	r.Patch("/data", h.UpdateData)
	r.MethodNotAllowed(methodNotAllowed)

	return r
}

// GET /api/user/data
func (h *UserHandler) GetData(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDeviceSession(r.Context())
	if device == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	data, err := h.userDataService.Get(r.Context(), device.GuestID)
	if err != nil {
		logServerError(err, "failed to load user data")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// PATCH /api/user/data
func (h *UserHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDeviceSession(r.Context())
	if device == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	var update model.UserDataUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}

	lastUpdated, err := h.userDataService.Update(r.Context(), device.GuestID, update)
	if err != nil {
		logServerError(err, "failed to update user data")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventUserDataUpdated,
		GuestID: device.GuestID,
		Details: map[string]any{"deviceName": device.DeviceName},
	})

	writeJSON(w, http.StatusOK, map[string]int64{"lastUpdated": lastUpdated})
}
