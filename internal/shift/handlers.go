package shift

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/common"
	"github.com/fluxretail/backend-pos/internal/money"
)

// Handler exposes the shift lifecycle endpoints.
type Handler struct {
	Service Service
}

// Routes mounts the shift endpoints.
func (h Handler) Routes(r chi.Router) {
	r.Post("/shifts/open", h.Open)
	r.Post("/shifts/{id}/close", h.Close)
	r.Get("/shifts/current", h.Current)
	r.Get("/shifts/{id}", h.Get)
}

type openRequest struct {
	StartingCash money.Money `json:"startingCash"`
}

type closeRequest struct {
	EndingCash money.Money `json:"endingCash"`
}

// Open handles POST /shifts/open.
func (h Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	sess, err := h.Service.Open(r.Context(), req.StartingCash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sess})
}

// Close handles POST /shifts/{id}/close.
func (h Handler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid shift id", nil)
		return
	}
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	sess, err := h.Service.Close(r.Context(), id, req.EndingCash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess})
}

// Current handles GET /shifts/current.
func (h Handler) Current(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sess == nil {
		common.JSONError(w, http.StatusNotFound, "NO_OPEN_SHIFT", "no shift is currently open", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess})
}

// Get handles GET /shifts/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid shift id", nil)
		return
	}
	sess, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess})
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, money.ErrNegative):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_AMOUNT", "cash amount must not be negative", nil)
	case errors.Is(err, ErrAlreadyOpen):
		common.JSONError(w, http.StatusConflict, "SHIFT_OPEN", err.Error(), nil)
	case errors.Is(err, ErrAlreadyClosed):
		common.JSONError(w, http.StatusConflict, "SHIFT_CLOSED", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "shift not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "request failed", nil)
	}
}
