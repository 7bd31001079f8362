package register

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/catalog"
	"github.com/fluxretail/backend-pos/internal/common"
	"github.com/fluxretail/backend-pos/internal/directory"
	"github.com/fluxretail/backend-pos/internal/ledger"
	"github.com/fluxretail/backend-pos/internal/settlement"
	"github.com/fluxretail/backend-pos/internal/totals"
)

// Handler exposes the sales endpoints.
type Handler struct {
	Service  Service
	Validate *validator.Validate
}

// Routes mounts the sales endpoints. Idempotency middleware for POST /sales is
// attached by the caller, since it needs a Redis client.
func (h Handler) Routes(r chi.Router) {
	r.Post("/sales/quote", h.Quote)
	r.Post("/sales", h.Complete)
	r.Post("/sales/hold", h.Hold)
	r.Post("/sales/{id}/void", h.Void)
	r.Post("/sales/{id}/refund", h.Refund)
	r.Get("/sales/{id}", h.Get)
	r.Get("/sales", h.List)
}

func (h Handler) decodeSale(w http.ResponseWriter, r *http.Request) (SaleInput, bool) {
	var in SaleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return SaleInput{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
			return SaleInput{}, false
		}
	}
	return in, true
}

// Quote handles POST /sales/quote.
func (h Handler) Quote(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSale(w, r)
	if !ok {
		return
	}
	res, err := h.Service.Quote(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Complete handles POST /sales.
func (h Handler) Complete(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSale(w, r)
	if !ok {
		return
	}
	tx, err := h.Service.CompleteSale(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": tx})
}

// Hold handles POST /sales/hold.
func (h Handler) Hold(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSale(w, r)
	if !ok {
		return
	}
	tx, err := h.Service.HoldSale(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": tx})
}

func (h Handler) statusChange(w http.ResponseWriter, r *http.Request,
	apply func(r *http.Request, id uuid.UUID) (settlement.Transaction, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid transaction id", nil)
		return
	}
	tx, err := apply(r, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tx})
}

// Void handles POST /sales/{id}/void.
func (h Handler) Void(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, func(r *http.Request, id uuid.UUID) (settlement.Transaction, error) {
		return h.Service.Void(r.Context(), id)
	})
}

// Refund handles POST /sales/{id}/refund.
func (h Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, func(r *http.Request, id uuid.UUID) (settlement.Transaction, error) {
		return h.Service.Refund(r.Context(), id)
	})
}

// Get handles GET /sales/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, func(r *http.Request, id uuid.UUID) (settlement.Transaction, error) {
		return h.Service.Get(r.Context(), id)
	})
}

// List handles GET /sales with pagination.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	txs, total, err := h.Service.List(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []settlement.Transaction{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": txs,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLineInput), errors.Is(err, totals.ErrInvalidDiscount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CART", err.Error(), nil)
	case errors.Is(err, settlement.ErrInvalidPayment):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_PAYMENT", err.Error(), nil)
	case errors.Is(err, settlement.ErrIncompleteSettlement):
		common.JSONError(w, http.StatusUnprocessableEntity, "INCOMPLETE_SETTLEMENT", err.Error(), nil)
	case errors.Is(err, settlement.ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, settlement.ErrInvalidTransition), errors.Is(err, ledger.ErrConflict):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ledger.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "transaction not found", nil)
	case errors.Is(err, directory.ErrNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_CUSTOMER", "customer not found", nil)
	case errors.Is(err, catalog.ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "request failed", nil)
	}
}
