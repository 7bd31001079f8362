package report

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/common"
	"github.com/fluxretail/backend-pos/internal/shift"
)

// Handler exposes the reporting endpoints.
type Handler struct {
	Service Service
}

// Routes mounts the report endpoints.
func (h Handler) Routes(r chi.Router) {
	r.Get("/reports/x", h.X)
	r.Get("/reports/z/{shiftID}", h.Z)
}

// X handles GET /reports/x for the open shift.
func (h Handler) X(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.XReport(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rep})
}

// Z handles GET /reports/z/{shiftID} for a closed shift.
func (h Handler) Z(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "shiftID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid shift id", nil)
		return
	}
	rep, err := h.Service.ZReport(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rep})
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shift.ErrNoShift):
		common.JSONError(w, http.StatusNotFound, "NO_OPEN_SHIFT", "no shift is currently open", nil)
	case errors.Is(err, shift.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "shift not found", nil)
	case errors.Is(err, ErrShiftStillOpen):
		common.JSONError(w, http.StatusConflict, "SHIFT_OPEN", "shift has not been closed yet", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "request failed", nil)
	}
}
