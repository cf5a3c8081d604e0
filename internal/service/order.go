// Package service holds the order business logic: the settings gate, the
// pricing pass and the transactional persistence, followed by a best-effort
// broadcast to the admin live feed.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/enum"
	"github.com/shopsy24/api/internal/pricing"
	"github.com/shopsy24/api/internal/settings"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotOrderOwner     = errors.New("order belongs to another user")
	ErrOrderNotPayable   = errors.New("order is not payable in its current state")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentNotPending = errors.New("payment is not pending")
	ErrAmountMismatch    = errors.New("payment amount does not match order total")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the service needs inside a transaction.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (database.Payment, error)
	CompletePayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	FailPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	SetOrderPaymentStatus(ctx context.Context, arg database.SetOrderPaymentStatusParams) (database.Order, error)
}

// SettingsStore reads the current store settings snapshot.
type SettingsStore interface {
	GetSettings(ctx context.Context) (database.StoreSettings, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Broadcaster publishes events to the admin live feed. Publishing is
// fire-and-forget; the service never fails a request over it.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// PlaceOrderRequest is the validated input for placing an order.
type PlaceOrderRequest struct {
	UserID          uuid.UUID
	Items           []pricing.ItemRequest
	Latitude        *float64
	Longitude       *float64
	DeliveryAddress string
	Notes           string
}

// PlaceOrderResult is the persisted order with its item snapshots.
type PlaceOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// InitiatePaymentResult carries the created payment intent and the
// recomputed order.
type InitiatePaymentResult struct {
	Payment database.Payment
	Order   database.Order
}

// VerifyPaymentResult carries the completed payment and the paid order.
type VerifyPaymentResult struct {
	Payment database.Payment
	Order   database.Order
}

// OrderService handles order placement and payment flows.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	settings SettingsStore
	engine   *pricing.Engine
	hub      Broadcaster
	now      func() time.Time
	log      *zap.SugaredLogger
}

// NewOrderService creates a new OrderService. now is injectable for
// deterministic tests; pass time.Now in production.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, settingsStore SettingsStore,
	engine *pricing.Engine, hub Broadcaster, now func() time.Time, log *zap.SugaredLogger) *OrderService {
	return &OrderService{
		pool:     pool,
		newStore: newStore,
		settings: settingsStore,
		engine:   engine,
		hub:      hub,
		now:      now,
		log:      log,
	}
}

// PlaceOrder gates, prices and persists a new order, then broadcasts
// order.created to the admin feed.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	cfg, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	if err := settings.CanAcceptOrder(gateSettings(cfg), s.now()); err != nil {
		return nil, err
	}

	feeBands, err := pricing.DecodeFeeBands(cfg.FeeBands)
	if err != nil {
		return nil, err
	}
	etaBands, err := pricing.DecodeEtaBands(cfg.EtaBands)
	if err != nil {
		return nil, err
	}

	quote, err := s.engine.PriceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	delivery := s.engine.QuoteDelivery(req.Latitude, req.Longitude, feeBands, etaBands)

	total := quote.ItemsTotal.Add(delivery.Charge)
	if !total.IsPositive() {
		return nil, pricing.ErrInvalidAmount
	}

	// Retry loop: handles the order_number unique constraint race where
	// concurrent transactions read the same MAX.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.placeOrderTx(ctx, req, quote, delivery, total)
		if err == nil {
			s.broadcast("order.created", result.Order)
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) placeOrderTx(ctx context.Context, req PlaceOrderRequest,
	quote *pricing.ItemsQuote, delivery pricing.DeliveryQuote, total decimal.Decimal) (*PlaceOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%04d", nextNum)

	latitude := pgtype.Float8{}
	longitude := pgtype.Float8{}
	distance := pgtype.Numeric{}
	if req.Latitude != nil && req.Longitude != nil {
		latitude = pgtype.Float8{Float64: *req.Latitude, Valid: true}
		longitude = pgtype.Float8{Float64: *req.Longitude, Valid: true}
	}
	_ = distance.Scan(decimal.NewFromFloat(delivery.DistanceKm).Round(3).String())

	address := pgtype.Text{}
	if req.DeliveryAddress != "" {
		address = pgtype.Text{String: req.DeliveryAddress, Valid: true}
	}
	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:     orderNumber,
		UserID:          req.UserID,
		ItemsTotal:      pricing.DecimalToNumeric(quote.ItemsTotal),
		DeliveryCharge:  pricing.DecimalToNumeric(delivery.Charge),
		TotalAmount:     pricing.DecimalToNumeric(total),
		DistanceKm:      distance,
		EtaMinutes:      pgtype.Int4{Int32: delivery.EtaMinutes, Valid: true},
		DeliveryAddress: address,
		Latitude:        latitude,
		Longitude:       longitude,
		Notes:           notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(quote.Items))
	for _, pi := range quote.Items {
		imageURL := pgtype.Text{}
		if pi.ImageURL != "" {
			imageURL = pgtype.Text{String: pi.ImageURL, Valid: true}
		}
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: pi.MenuItemID,
			Name:       pi.Name,
			ImageUrl:   imageURL,
			Quantity:   pi.Quantity,
			UnitPrice:  pricing.DecimalToNumeric(pi.UnitPrice),
			Subtotal:   pricing.DecimalToNumeric(pi.UnitPrice.Mul(decimal.NewFromInt32(pi.Quantity))),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PlaceOrderResult{Order: order, Items: items}, nil
}

// InitiatePayment re-gates and recomputes the order total from the current
// catalog and bands, refreshes the stored amounts if they drifted, and
// creates a PENDING payment intent for the recomputed amount.
func (s *OrderService) InitiatePayment(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool) (*InitiatePaymentResult, error) {
	cfg, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if err := settings.CanAcceptOrder(gateSettings(cfg), s.now()); err != nil {
		return nil, err
	}

	feeBands, err := pricing.DecodeFeeBands(cfg.FeeBands)
	if err != nil {
		return nil, err
	}
	etaBands, err := pricing.DecodeEtaBands(cfg.EtaBands)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if order.PaymentStatus != enum.PaymentStatusUnpaid && order.PaymentStatus != enum.PaymentStatusFailed {
		return nil, ErrOrderNotPayable
	}

	storedItems, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	// Recompute from the catalog rather than trusting stored amounts.
	reqs := make([]pricing.ItemRequest, len(storedItems))
	for i, it := range storedItems {
		reqs[i] = pricing.ItemRequest{MenuItemID: it.MenuItemID.String(), Quantity: it.Quantity}
	}
	quote, err := s.engine.PriceItems(ctx, reqs)
	if err != nil {
		return nil, err
	}

	var lat, lon *float64
	if order.Latitude.Valid && order.Longitude.Valid {
		lat, lon = &order.Latitude.Float64, &order.Longitude.Float64
	}
	delivery := s.engine.QuoteDelivery(lat, lon, feeBands, etaBands)

	total := quote.ItemsTotal.Add(delivery.Charge)
	if !total.IsPositive() {
		return nil, pricing.ErrInvalidAmount
	}

	if !total.Equal(pricing.NumericToDecimal(order.TotalAmount)) {
		s.log.Infow("order total drifted since placement, refreshing",
			"order_id", order.ID,
			"stored", pricing.NumericToDecimal(order.TotalAmount).StringFixed(2),
			"recomputed", total.StringFixed(2))
		order, err = store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
			ID:             order.ID,
			ItemsTotal:     pricing.DecimalToNumeric(quote.ItemsTotal),
			DeliveryCharge: pricing.DecimalToNumeric(delivery.Charge),
			TotalAmount:    pricing.DecimalToNumeric(total),
		})
		if err != nil {
			return nil, fmt.Errorf("update order totals: %w", err)
		}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:   order.ID,
		Reference: uuid.New().String(),
		Amount:    pricing.DecimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	order, err = store.SetOrderPaymentStatus(ctx, database.SetOrderPaymentStatusParams{
		ID:            order.ID,
		PaymentStatus: enum.PaymentStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("set payment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &InitiatePaymentResult{Payment: payment, Order: order}, nil
}

// VerifyPayment re-validates the pending payment against the order's stored
// total. A mismatch fails the payment; a match completes it, marks the order
// PAID and broadcasts order.paid.
func (s *OrderService) VerifyPayment(ctx context.Context, reference string) (*VerifyPaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPaymentByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status != enum.PaymentIntentPending {
		return nil, ErrPaymentNotPending
	}

	order, err := store.GetOrderForUpdate(ctx, payment.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !pricing.NumericToDecimal(payment.Amount).Equal(pricing.NumericToDecimal(order.TotalAmount)) {
		if _, err := store.FailPayment(ctx, payment.ID); err != nil {
			return nil, fmt.Errorf("fail payment: %w", err)
		}
		if _, err := store.SetOrderPaymentStatus(ctx, database.SetOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: enum.PaymentStatusFailed,
		}); err != nil {
			return nil, fmt.Errorf("set payment status: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return nil, ErrAmountMismatch
	}

	payment, err = store.CompletePayment(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotPending
		}
		return nil, fmt.Errorf("complete payment: %w", err)
	}

	order, err = store.SetOrderPaymentStatus(ctx, database.SetOrderPaymentStatusParams{
		ID:            order.ID,
		PaymentStatus: enum.PaymentStatusPaid,
	})
	if err != nil {
		return nil, fmt.Errorf("set payment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.broadcast("order.paid", order)

	return &VerifyPaymentResult{Payment: payment, Order: order}, nil
}

// broadcast publishes to the admin feed; failures are logged and swallowed.
func (s *OrderService) broadcast(eventType string, order database.Order) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(eventType, map[string]any{
		"id":             order.ID,
		"order_number":   order.OrderNumber,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"total_amount":   pricing.NumericToDecimal(order.TotalAmount).StringFixed(2),
	})
}

func gateSettings(cfg database.StoreSettings) settings.Settings {
	occasion := ""
	if cfg.OccasionName.Valid {
		occasion = cfg.OccasionName.String
	}
	return settings.Settings{
		OrderingDisabled: cfg.OrderingDisabled,
		OccasionName:     occasion,
		OpeningTime:      cfg.OpeningTime,
		ClosingTime:      cfg.ClosingTime,
	}
}

// isOrderNumberConflict checks for a unique constraint violation on the
// order number (postgres error 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}
