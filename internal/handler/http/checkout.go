package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/internal/repository"
	"github.com/wreckyard/checkout/internal/service"
	"github.com/wreckyard/checkout/pkg/httputil"
	"github.com/wreckyard/checkout/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddressRequest is the JSON request body for setting the delivery address.
// A partial address is accepted; quoting stays inert until it is complete.
type AddressRequest struct {
	Street   string `json:"street"`
	Suburb   string `json:"suburb"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
}

// BillingRequest is the JSON request body for setting billing details.
type BillingRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	Suburb    string `json:"suburb"`
	Postcode  string `json:"postcode"`
	Phone     string `json:"phone"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// SelectRateRequest is the JSON request body for selecting a shipping rate.
type SelectRateRequest struct {
	Service string `json:"service" validate:"required"`
}

// ConfirmRequest is the JSON request body for order finalization, carrying
// the capture id reported by the payment provider.
type ConfirmRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

// --- Handlers ---

// GetState handles GET /api/v1/checkout
func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	state, err := h.service.GetState(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: state})
}

// SetAddress handles PUT /api/v1/checkout/address
func (h *CheckoutHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req AddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	addr := domain.Address{
		Street:   req.Street,
		Suburb:   req.Suburb,
		State:    req.State,
		Postcode: req.Postcode,
	}
	if err := h.service.SetDeliveryAddress(r.Context(), userID, addr); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response{Data: map[string]string{"status": "accepted"}})
}

// SetBilling handles PUT /api/v1/checkout/billing
func (h *CheckoutHandler) SetBilling(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req BillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	billing := domain.BillingDetails{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Street:    req.Street,
		Suburb:    req.Suburb,
		Postcode:  req.Postcode,
		Phone:     req.Phone,
		Email:     req.Email,
	}
	if err := h.service.SetBillingDetails(r.Context(), userID, billing); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response{Data: map[string]string{"status": "accepted"}})
}

// SelectRate handles POST /api/v1/checkout/rate
func (h *CheckoutHandler) SelectRate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req SelectRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.SelectRate(r.Context(), userID, req.Service); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	state, err := h.service.GetState(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: state})
}

// Confirm handles POST /api/v1/checkout/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.FinalizeOrder(r.Context(), userID, req.PaymentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// --- Operational follow-up endpoints ---

// FollowUpHandler exposes the operational follow-up ledger to back-office
// tooling.
type FollowUpHandler struct {
	repo   repository.FollowUpRepository
	logger *slog.Logger
}

// NewFollowUpHandler creates a new follow-up HTTP handler.
func NewFollowUpHandler(repo repository.FollowUpRepository, logger *slog.Logger) *FollowUpHandler {
	return &FollowUpHandler{repo: repo, logger: logger}
}

// List handles GET /api/v1/followups
func (h *FollowUpHandler) List(w http.ResponseWriter, r *http.Request) {
	followups, err := h.repo.ListOpen(r.Context(), 100)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if followups == nil {
		followups = []domain.FollowUp{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: followups})
}

// Resolve handles POST /api/v1/followups/{id}/resolve
func (h *FollowUpHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "id is required"},
		})
		return
	}

	if err := h.repo.Resolve(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "resolved"}})
}
