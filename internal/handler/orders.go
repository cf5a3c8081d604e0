package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/enum"
	"github.com/shopsy24/api/internal/middleware"
	"github.com/shopsy24/api/internal/pricing"
	"github.com/shopsy24/api/internal/service"
	"github.com/shopsy24/api/internal/settings"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.PlaceOrderResult, error)
}

// OrderStore defines the database methods needed by order read/update
// handlers. Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersByUser(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ArchiveOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   service.Broadcaster
	log   *zap.SugaredLogger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub service.Broadcaster, log *zap.SugaredLogger) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub, log: log}
}

// RegisterRoutes registers order endpoints available to any authenticated user.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers order endpoints restricted to admins.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Archive)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items"`
	Latitude        *float64                 `json:"latitude"`
	Longitude       *float64                 `json:"longitude"`
	DeliveryAddress string                   `json:"delivery_address"`
	Notes           string                   `json:"notes"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	ItemsTotal      string              `json:"items_total"`
	DeliveryCharge  string              `json:"delivery_charge"`
	TotalAmount     string              `json:"total_amount"`
	DistanceKm      *string             `json:"distance_km"`
	EtaMinutes      *int32              `json:"eta_minutes"`
	DeliveryAddress *string             `json:"delivery_address"`
	Notes           *string             `json:"notes"`
	HandledBy       *string             `json:"handled_by"`
	HandledAt       *time.Time          `json:"handled_at"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	ImageURL   *string   `json:"image_url"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
}

type paymentResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	Reference   string     `json:"reference"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// orderDetailResponse extends orderResponse with payments for the detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Payments []paymentResponse `json:"payments"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	// Unknown fields are rejected rather than silently stored.
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req createOrderRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items are required")
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(w, http.StatusBadRequest, "latitude and longitude must be provided together")
		return
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeError(w, http.StatusBadRequest, formatItemError(i, "menu_item_id is required"))
			return
		}
		if item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, formatItemError(i, "quantity must be > 0"))
			return
		}
	}

	svcItems := make([]pricing.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = pricing.ItemRequest{MenuItemID: item.MenuItemID, Quantity: item.Quantity}
	}

	result, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:          claims.UserID,
		Items:           svcItems,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.log, "place order", err)
		return
	}

	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, it := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(it)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders. Admins see every order with filters; customers
// see their own.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	if offset > math.MaxInt32 {
		offset = math.MaxInt32
	}

	var orders []database.Order
	var err error

	if claims.Role == enum.UserRoleAdmin {
		params := database.ListOrdersParams{
			Limit:  int32(limit),
			Offset: int32(offset),
		}
		if s := r.URL.Query().Get("status"); s != "" {
			params.Status = pgtype.Text{String: s, Valid: true}
		}
		if s := r.URL.Query().Get("start_date"); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid start_date format, use YYYY-MM-DD")
				return
			}
			params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
		}
		if s := r.URL.Query().Get("end_date"); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid end_date format, use YYYY-MM-DD")
				return
			}
			params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
		}
		orders, err = h.store.ListOrders(r.Context(), params)
	} else {
		orders, err = h.store.ListOrdersByUser(r.Context(), database.ListOrdersByUserParams{
			UserID: claims.UserID,
			Limit:  int32(limit),
			Offset: int32(offset),
		})
	}
	if err != nil {
		h.log.Errorw("list orders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.Errorw("get order", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if claims.Role != enum.UserRoleAdmin && order.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		h.log.Errorw("list order items", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		h.log.Errorw("list payments", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, it := range items {
		resp.Items[i] = dbOrderItemToResponse(it)
	}

	paymentResps := make([]paymentResponse, len(payments))
	for i, p := range payments {
		paymentResps[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: resp,
		Payments:      paymentResps,
	})
}

// UpdateStatus handles PATCH /orders/{id}/status. Admin only (enforced by
// router middleware); records who handled the transition.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if !isValidOrderStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	current, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.Errorw("get order for status update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := validateStatusTransition(current.Status, req.Status); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     req.Status,
		HandledBy:  pgtype.UUID{Bytes: claims.UserID, Valid: true},
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status changed between our read and write.
			writeError(w, http.StatusConflict, "order status changed, please retry")
			return
		}
		h.log.Errorw("update order status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast("order.status_changed", map[string]any{
			"id":           updated.ID,
			"order_number": updated.OrderNumber,
			"status":       updated.Status,
		})
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// Archive handles DELETE /orders/{id}. Orders are soft-deleted; paid orders
// remain on disk.
func (h *OrderHandler) Archive(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	archived, err := h.store.ArchiveOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.Errorw("archive order", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(archived))
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// writeServiceError maps known service/pricing/settings errors onto HTTP
// status codes; anything else is a 500.
func writeServiceError(w http.ResponseWriter, log *zap.SugaredLogger, op string, err error) {
	var closed *settings.ClosedError
	var outside *settings.OutsideHoursError
	switch {
	case errors.As(err, &closed), errors.As(err, &outside):
		writeError(w, http.StatusForbidden, err.Error())
	case isPricingError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOrderOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrPaymentNotPending),
		errors.Is(err, service.ErrAmountMismatch):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Errorw(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isPricingError(err error) bool {
	return errors.Is(err, pricing.ErrEmptyItems) ||
		errors.Is(err, pricing.ErrInvalidItemID) ||
		errors.Is(err, pricing.ErrInvalidQuantity) ||
		errors.Is(err, pricing.ErrItemNotFound) ||
		errors.Is(err, pricing.ErrItemUnavailable) ||
		errors.Is(err, pricing.ErrInvalidAmount)
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		ItemsTotal:     numericToString(o.ItemsTotal),
		DeliveryCharge: numericToString(o.DeliveryCharge),
		TotalAmount:    numericToString(o.TotalAmount),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          []orderItemResponse{},
	}

	if o.DistanceKm.Valid {
		s := numericToString(o.DistanceKm)
		resp.DistanceKm = &s
	}
	if o.EtaMinutes.Valid {
		resp.EtaMinutes = &o.EtaMinutes.Int32
	}
	if o.DeliveryAddress.Valid {
		resp.DeliveryAddress = &o.DeliveryAddress.String
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.HandledBy.Valid {
		s := uuid.UUID(o.HandledBy.Bytes).String()
		resp.HandledBy = &s
	}
	if o.HandledAt.Valid {
		resp.HandledAt = &o.HandledAt.Time
	}

	return resp
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		Subtotal:   numericToString(item.Subtotal),
	}
	if item.ImageUrl.Valid {
		resp.ImageURL = &item.ImageUrl.String
	}
	return resp
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Reference: p.Reference,
		Amount:    numericToString(p.Amount),
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
	if p.CompletedAt.Valid {
		resp.CompletedAt = &p.CompletedAt.Time
	}
	return resp
}

// isValidOrderStatus checks if the given status is a valid order status.
func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusNew,
		enum.OrderStatusConfirmed,
		enum.OrderStatusOutForDelivery,
		enum.OrderStatusDelivered,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	enum.OrderStatusNew:            {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:      {enum.OrderStatusOutForDelivery, enum.OrderStatusCancelled},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
