package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/enum"
	"github.com/shopsy24/api/internal/middleware"
	"github.com/shopsy24/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.OrderService.
type PaymentServicer interface {
	InitiatePayment(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool) (*service.InitiatePaymentResult, error)
	VerifyPayment(ctx context.Context, reference string) (*service.VerifyPaymentResult, error)
}

// PaymentHandler handles payment initiation and verification.
type PaymentHandler struct {
	svc PaymentServicer
	log *zap.SugaredLogger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, log *zap.SugaredLogger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

// RegisterOrderRoutes registers the initiation endpoint, expected to be
// mounted at /orders/{id}/payments.
func (h *PaymentHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/", h.Initiate)
}

// RegisterVerifyRoutes registers the verification endpoint at
// /payments/{reference}/verify.
func (h *PaymentHandler) RegisterVerifyRoutes(r chi.Router) {
	r.Post("/{reference}/verify", h.Verify)
}

type initiatePaymentResponse struct {
	Reference string        `json:"reference"`
	Amount    string        `json:"amount"`
	Status    string        `json:"status"`
	Order     orderResponse `json:"order"`
}

// Initiate handles POST /orders/{id}/payments.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	result, err := h.svc.InitiatePayment(r.Context(), orderID, claims.UserID, claims.Role == enum.UserRoleAdmin)
	if err != nil {
		writeServiceError(w, h.log, "initiate payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, initiatePaymentResponse{
		Reference: result.Payment.Reference,
		Amount:    numericToString(result.Payment.Amount),
		Status:    result.Payment.Status,
		Order:     dbOrderToResponse(result.Order),
	})
}

// Verify handles POST /payments/{reference}/verify.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "payment reference is required")
		return
	}

	result, err := h.svc.VerifyPayment(r.Context(), reference)
	if err != nil {
		writeServiceError(w, h.log, "verify payment", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payment": dbPaymentToResponse(result.Payment),
		"order":   dbOrderToResponse(result.Order),
	})
}
