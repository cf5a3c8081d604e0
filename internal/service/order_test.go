package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/enum"
	"github.com/shopsy24/api/internal/pricing"
	"github.com/shopsy24/api/internal/settings"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getNextOrderNumberFn    func(ctx context.Context) (int32, error)
	createOrderFn           func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn       func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderForUpdateFn     func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrderItemsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	updateOrderTotalsFn     func(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	createPaymentFn         func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	getPaymentByReferenceFn func(ctx context.Context, reference string) (database.Payment, error)
	completePaymentFn       func(ctx context.Context, id uuid.UUID) (database.Payment, error)
	failPaymentFn           func(ctx context.Context, id uuid.UUID) (database.Payment, error)
	setOrderPaymentStatusFn func(ctx context.Context, arg database.SetOrderPaymentStatusParams) (database.Order, error)
}

func (m *mockOrderStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	return m.getNextOrderNumberFn(ctx)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsByOrderFn(ctx, orderID)
}
func (m *mockOrderStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	return m.updateOrderTotalsFn(ctx, arg)
}
func (m *mockOrderStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	return m.createPaymentFn(ctx, arg)
}
func (m *mockOrderStore) GetPaymentByReference(ctx context.Context, reference string) (database.Payment, error) {
	return m.getPaymentByReferenceFn(ctx, reference)
}
func (m *mockOrderStore) CompletePayment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	return m.completePaymentFn(ctx, id)
}
func (m *mockOrderStore) FailPayment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	return m.failPaymentFn(ctx, id)
}
func (m *mockOrderStore) SetOrderPaymentStatus(ctx context.Context, arg database.SetOrderPaymentStatusParams) (database.Order, error) {
	return m.setOrderPaymentStatusFn(ctx, arg)
}

// mockSettingsStore returns a fixed settings snapshot.
type mockSettingsStore struct {
	settings database.StoreSettings
	err      error
}

func (m *mockSettingsStore) GetSettings(ctx context.Context) (database.StoreSettings, error) {
	return m.settings, m.err
}

// mockCatalog backs the pricing engine.
type mockCatalog struct {
	items map[uuid.UUID]database.GetMenuItemForOrderRow
}

func (m *mockCatalog) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error) {
	row, ok := m.items[id]
	if !ok {
		return database.GetMenuItemForOrderRow{}, pgx.ErrNoRows
	}
	return row, nil
}

// mockBroadcaster records broadcast events.
type mockBroadcaster struct {
	events []string
}

func (m *mockBroadcaster) Broadcast(eventType string, payload any) {
	m.events = append(m.events, eventType)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

// middayUTC is 12:00 at the store (UTC+5:30), inside the default window.
func middayUTC() time.Time {
	return time.Date(2025, 6, 15, 6, 30, 0, 0, time.UTC)
}

func openSettings() database.StoreSettings {
	return database.StoreSettings{
		OpeningTime: "09:00",
		ClosingTime: "21:00",
	}
}

func menuRow(price string) database.GetMenuItemForOrderRow {
	return database.GetMenuItemForOrderRow{
		ID:          uuid.New(),
		Name:        "Veg Thali",
		Price:       makeNumeric(price),
		IsAvailable: true,
	}
}

type fixture struct {
	store    *mockOrderStore
	settings *mockSettingsStore
	catalog  *mockCatalog
	hub      *mockBroadcaster
	now      time.Time
}

func defaultFixture(rows ...database.GetMenuItemForOrderRow) *fixture {
	catalog := &mockCatalog{items: make(map[uuid.UUID]database.GetMenuItemForOrderRow)}
	for _, r := range rows {
		catalog.items[r.ID] = r
	}

	store := &mockOrderStore{
		getNextOrderNumberFn: func(ctx context.Context) (int32, error) { return 1, nil },
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:             uuid.New(),
				OrderNumber:    arg.OrderNumber,
				UserID:         arg.UserID,
				Status:         enum.OrderStatusNew,
				PaymentStatus:  enum.PaymentStatusUnpaid,
				ItemsTotal:     arg.ItemsTotal,
				DeliveryCharge: arg.DeliveryCharge,
				TotalAmount:    arg.TotalAmount,
				Latitude:       arg.Latitude,
				Longitude:      arg.Longitude,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:         uuid.New(),
				OrderID:    arg.OrderID,
				MenuItemID: arg.MenuItemID,
				Name:       arg.Name,
				Quantity:   arg.Quantity,
				UnitPrice:  arg.UnitPrice,
				Subtotal:   arg.Subtotal,
			}, nil
		},
	}

	return &fixture{
		store:    store,
		settings: &mockSettingsStore{settings: openSettings()},
		catalog:  catalog,
		hub:      &mockBroadcaster{},
		now:      middayUTC(),
	}
}

func (f *fixture) service() *OrderService {
	engine := pricing.NewEngine(f.catalog, 25.5941, 85.1376)
	newStore := func(db database.DBTX) OrderStore { return f.store }
	return NewOrderService(
		&mockTxBeginner{tx: &mockTx{}},
		newStore,
		f.settings,
		engine,
		f.hub,
		func() time.Time { return f.now },
		zap.NewNop().Sugar(),
	)
}

func basicReq(itemID uuid.UUID, qty int32) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID: uuid.New(),
		Items:  []pricing.ItemRequest{{MenuItemID: itemID.String(), Quantity: qty}},
	}
}

// --- PlaceOrder ---

func TestPlaceOrder_HappyPath(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)

	var created database.CreateOrderParams
	inner := f.store.createOrderFn
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}

	result, err := f.service().PlaceOrder(context.Background(), basicReq(row.ID, 2))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if created.OrderNumber != "ORD-0001" {
		t.Errorf("order_number: got %s, want ORD-0001", created.OrderNumber)
	}
	if got := pricing.NumericToDecimal(created.ItemsTotal).StringFixed(2); got != "200.00" {
		t.Errorf("items_total: got %s, want 200.00", got)
	}
	// No coordinates: zero-distance band, free delivery.
	if got := pricing.NumericToDecimal(created.DeliveryCharge).StringFixed(2); got != "0.00" {
		t.Errorf("delivery_charge: got %s, want 0.00", got)
	}
	if got := pricing.NumericToDecimal(created.TotalAmount).StringFixed(2); got != "200.00" {
		t.Errorf("total_amount: got %s, want 200.00", got)
	}
	if len(result.Items) != 1 {
		t.Errorf("items count: got %d, want 1", len(result.Items))
	}
	if len(f.hub.events) != 1 || f.hub.events[0] != "order.created" {
		t.Errorf("broadcasts: got %v, want [order.created]", f.hub.events)
	}
}

func TestPlaceOrder_DeliveryChargeAddedToTotal(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)

	var created database.CreateOrderParams
	inner := f.store.createOrderFn
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}

	// ~1.5km north of the store: the [1, 2) band charges 20.
	req := basicReq(row.ID, 2)
	lat := 25.5941 + 0.0135
	lon := 85.1376
	req.Latitude, req.Longitude = &lat, &lon

	if _, err := f.service().PlaceOrder(context.Background(), req); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if got := pricing.NumericToDecimal(created.DeliveryCharge).StringFixed(2); got != "20.00" {
		t.Errorf("delivery_charge: got %s, want 20.00", got)
	}
	if got := pricing.NumericToDecimal(created.TotalAmount).StringFixed(2); got != "220.00" {
		t.Errorf("total_amount: got %s, want 220.00", got)
	}
}

func TestPlaceOrder_UsesConfiguredBands(t *testing.T) {
	row := menuRow("50.00")
	f := defaultFixture(row)
	f.settings.settings.FeeBands = []byte(`[{"min_km":0,"max_km":10,"charge":"5"}]`)

	var created database.CreateOrderParams
	inner := f.store.createOrderFn
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		created = arg
		return inner(ctx, arg)
	}

	req := basicReq(row.ID, 1)
	lat := 25.5941 + 0.0135
	lon := 85.1376
	req.Latitude, req.Longitude = &lat, &lon

	if _, err := f.service().PlaceOrder(context.Background(), req); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if got := pricing.NumericToDecimal(created.DeliveryCharge).StringFixed(2); got != "5.00" {
		t.Errorf("delivery_charge: got %s, want 5.00", got)
	}
}

func TestPlaceOrder_StoreDisabled(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)
	f.settings.settings.OrderingDisabled = true
	f.settings.settings.OccasionName = pgtype.Text{String: "Diwali", Valid: true}

	_, err := f.service().PlaceOrder(context.Background(), basicReq(row.ID, 1))

	var closedErr *settings.ClosedError
	if !errors.As(err, &closedErr) {
		t.Fatalf("error: got %v, want ClosedError", err)
	}
	if closedErr.Reason != "Diwali" {
		t.Errorf("reason: got %q, want Diwali", closedErr.Reason)
	}
}

func TestPlaceOrder_OutsideBusinessHours(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)
	// 23:00 at the store
	f.now = time.Date(2025, 6, 15, 17, 30, 0, 0, time.UTC)

	_, err := f.service().PlaceOrder(context.Background(), basicReq(row.ID, 1))

	var outsideErr *settings.OutsideHoursError
	if !errors.As(err, &outsideErr) {
		t.Fatalf("error: got %v, want OutsideHoursError", err)
	}
}

func TestPlaceOrder_UnknownItemNothingPersisted(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)

	createCalled := false
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCalled = true
		return database.Order{}, nil
	}

	req := PlaceOrderRequest{
		UserID: uuid.New(),
		Items: []pricing.ItemRequest{
			{MenuItemID: row.ID.String(), Quantity: 1},
			{MenuItemID: uuid.New().String(), Quantity: 1},
		},
	}
	_, err := f.service().PlaceOrder(context.Background(), req)
	if !errors.Is(err, pricing.ErrItemNotFound) {
		t.Fatalf("error: got %v, want ErrItemNotFound", err)
	}
	if createCalled {
		t.Error("CreateOrder should not be called when any item is unknown")
	}
}

func TestPlaceOrder_RetryOnUniqueViolation(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)

	createCallCount := 0
	inner := f.store.createOrderFn
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		createCallCount++
		if createCallCount == 1 {
			return database.Order{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "orders_order_number_key",
			}
		}
		return inner(ctx, arg)
	}

	orderNumCallCount := 0
	f.store.getNextOrderNumberFn = func(ctx context.Context) (int32, error) {
		orderNumCallCount++
		return int32(orderNumCallCount), nil
	}

	result, err := f.service().PlaceOrder(context.Background(), basicReq(row.ID, 1))
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if createCallCount != 2 {
		t.Errorf("expected 2 CreateOrder calls (1 fail + 1 success), got %d", createCallCount)
	}
	if orderNumCallCount != 2 {
		t.Errorf("expected 2 GetNextOrderNumber calls, got %d", orderNumCallCount)
	}
}

func TestPlaceOrder_RetryExhausted(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)

	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, &pgconn.PgError{
			Code:           "23505",
			ConstraintName: "orders_order_number_key",
		}
	}

	_, err := f.service().PlaceOrder(context.Background(), basicReq(row.ID, 1))
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if !strings.Contains(err.Error(), "create order") {
		t.Errorf("expected 'create order' in error message, got: %v", err)
	}
}

func TestPlaceOrder_NonUniqueErrorNotRetried(t *testing.T) {
	row := menuRow("100.00")
	f := defaultFixture(row)

	callCount := 0
	f.store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		callCount++
		return database.Order{}, errors.New("some other DB error")
	}

	_, err := f.service().PlaceOrder(context.Background(), basicReq(row.ID, 1))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if callCount != 1 {
		t.Errorf("non-unique errors should not retry: expected 1 call, got %d", callCount)
	}
}

// --- InitiatePayment ---

func payableOrder(userID uuid.UUID, total string) database.Order {
	return database.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-0001",
		UserID:        userID,
		Status:        enum.OrderStatusNew,
		PaymentStatus: enum.PaymentStatusUnpaid,
		ItemsTotal:    makeNumeric(total),
		TotalAmount:   makeNumeric(total),
	}
}

func paymentFixture(row database.GetMenuItemForOrderRow, order database.Order) *fixture {
	f := defaultFixture(row)

	f.store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		if id != order.ID {
			return database.Order{}, pgx.ErrNoRows
		}
		return order, nil
	}
	f.store.listOrderItemsByOrderFn = func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
		return []database.OrderItem{
			{OrderID: order.ID, MenuItemID: row.ID, Quantity: 1, UnitPrice: row.Price},
		}, nil
	}
	f.store.createPaymentFn = func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
		return database.Payment{
			ID:        uuid.New(),
			OrderID:   arg.OrderID,
			Reference: arg.Reference,
			Amount:    arg.Amount,
			Status:    enum.PaymentIntentPending,
		}, nil
	}
	f.store.setOrderPaymentStatusFn = func(ctx context.Context, arg database.SetOrderPaymentStatusParams) (database.Order, error) {
		order.PaymentStatus = arg.PaymentStatus
		return order, nil
	}
	return f
}

func TestInitiatePayment_HappyPath(t *testing.T) {
	row := menuRow("100.00")
	userID := uuid.New()
	order := payableOrder(userID, "100.00")
	f := paymentFixture(row, order)

	result, err := f.service().InitiatePayment(context.Background(), order.ID, userID, false)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	if result.Payment.Status != enum.PaymentIntentPending {
		t.Errorf("payment status: got %s, want PENDING", result.Payment.Status)
	}
	if got := pricing.NumericToDecimal(result.Payment.Amount).StringFixed(2); got != "100.00" {
		t.Errorf("amount: got %s, want 100.00", got)
	}
	if result.Payment.Reference == "" {
		t.Error("reference should not be empty")
	}
	if result.Order.PaymentStatus != enum.PaymentStatusPending {
		t.Errorf("order payment_status: got %s, want PENDING", result.Order.PaymentStatus)
	}
}

func TestInitiatePayment_OrderNotFound(t *testing.T) {
	row := menuRow("100.00")
	order := payableOrder(uuid.New(), "100.00")
	f := paymentFixture(row, order)

	_, err := f.service().InitiatePayment(context.Background(), uuid.New(), order.UserID, false)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error: got %v, want ErrOrderNotFound", err)
	}
}

func TestInitiatePayment_NotOwner(t *testing.T) {
	row := menuRow("100.00")
	order := payableOrder(uuid.New(), "100.00")
	f := paymentFixture(row, order)

	_, err := f.service().InitiatePayment(context.Background(), order.ID, uuid.New(), false)
	if !errors.Is(err, ErrNotOrderOwner) {
		t.Fatalf("error: got %v, want ErrNotOrderOwner", err)
	}
}

func TestInitiatePayment_AdminBypassesOwnership(t *testing.T) {
	row := menuRow("100.00")
	order := payableOrder(uuid.New(), "100.00")
	f := paymentFixture(row, order)

	_, err := f.service().InitiatePayment(context.Background(), order.ID, uuid.New(), true)
	if err != nil {
		t.Fatalf("admin should bypass ownership check: %v", err)
	}
}

func TestInitiatePayment_AlreadyPaid(t *testing.T) {
	row := menuRow("100.00")
	order := payableOrder(uuid.New(), "100.00")
	order.PaymentStatus = enum.PaymentStatusPaid
	f := paymentFixture(row, order)

	_, err := f.service().InitiatePayment(context.Background(), order.ID, order.UserID, false)
	if !errors.Is(err, ErrOrderNotPayable) {
		t.Fatalf("error: got %v, want ErrOrderNotPayable", err)
	}
}

func TestInitiatePayment_RefreshesDriftedTotal(t *testing.T) {
	// The catalog price moved from 100 to 120 after placement; the stored
	// total must be refreshed and the payment created for the new amount.
	row := menuRow("120.00")
	userID := uuid.New()
	order := payableOrder(userID, "100.00")
	f := paymentFixture(row, order)

	totalsUpdated := false
	f.store.updateOrderTotalsFn = func(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
		totalsUpdated = true
		order.ItemsTotal = arg.ItemsTotal
		order.TotalAmount = arg.TotalAmount
		return order, nil
	}

	result, err := f.service().InitiatePayment(context.Background(), order.ID, userID, false)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if !totalsUpdated {
		t.Error("expected UpdateOrderTotals to be called for drifted total")
	}
	if got := pricing.NumericToDecimal(result.Payment.Amount).StringFixed(2); got != "120.00" {
		t.Errorf("amount: got %s, want recomputed 120.00", got)
	}
}

func TestInitiatePayment_GateStillApplies(t *testing.T) {
	row := menuRow("100.00")
	order := payableOrder(uuid.New(), "100.00")
	f := paymentFixture(row, order)
	f.settings.settings.OrderingDisabled = true

	_, err := f.service().InitiatePayment(context.Background(), order.ID, order.UserID, false)

	var closedErr *settings.ClosedError
	if !errors.As(err, &closedErr) {
		t.Fatalf("error: got %v, want ClosedError", err)
	}
}

// --- VerifyPayment ---

func verifyFixture(order database.Order, payment database.Payment) *fixture {
	f := defaultFixture()

	f.store.getPaymentByReferenceFn = func(ctx context.Context, reference string) (database.Payment, error) {
		if reference != payment.Reference {
			return database.Payment{}, pgx.ErrNoRows
		}
		return payment, nil
	}
	f.store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return order, nil
	}
	f.store.completePaymentFn = func(ctx context.Context, id uuid.UUID) (database.Payment, error) {
		payment.Status = enum.PaymentIntentCompleted
		return payment, nil
	}
	f.store.failPaymentFn = func(ctx context.Context, id uuid.UUID) (database.Payment, error) {
		payment.Status = enum.PaymentIntentFailed
		return payment, nil
	}
	f.store.setOrderPaymentStatusFn = func(ctx context.Context, arg database.SetOrderPaymentStatusParams) (database.Order, error) {
		order.PaymentStatus = arg.PaymentStatus
		return order, nil
	}
	return f
}

func pendingPayment(orderID uuid.UUID, amount string) database.Payment {
	return database.Payment{
		ID:        uuid.New(),
		OrderID:   orderID,
		Reference: uuid.New().String(),
		Amount:    makeNumeric(amount),
		Status:    enum.PaymentIntentPending,
	}
}

func TestVerifyPayment_HappyPath(t *testing.T) {
	order := payableOrder(uuid.New(), "220.00")
	order.PaymentStatus = enum.PaymentStatusPending
	payment := pendingPayment(order.ID, "220.00")
	f := verifyFixture(order, payment)

	result, err := f.service().VerifyPayment(context.Background(), payment.Reference)
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	if result.Payment.Status != enum.PaymentIntentCompleted {
		t.Errorf("payment status: got %s, want COMPLETED", result.Payment.Status)
	}
	if result.Order.PaymentStatus != enum.PaymentStatusPaid {
		t.Errorf("order payment_status: got %s, want PAID", result.Order.PaymentStatus)
	}
	if len(f.hub.events) != 1 || f.hub.events[0] != "order.paid" {
		t.Errorf("broadcasts: got %v, want [order.paid]", f.hub.events)
	}
}

func TestVerifyPayment_UnknownReference(t *testing.T) {
	order := payableOrder(uuid.New(), "220.00")
	payment := pendingPayment(order.ID, "220.00")
	f := verifyFixture(order, payment)

	_, err := f.service().VerifyPayment(context.Background(), "no-such-reference")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("error: got %v, want ErrPaymentNotFound", err)
	}
}

func TestVerifyPayment_NotPending(t *testing.T) {
	order := payableOrder(uuid.New(), "220.00")
	payment := pendingPayment(order.ID, "220.00")
	payment.Status = enum.PaymentIntentCompleted
	f := verifyFixture(order, payment)

	_, err := f.service().VerifyPayment(context.Background(), payment.Reference)
	if !errors.Is(err, ErrPaymentNotPending) {
		t.Fatalf("error: got %v, want ErrPaymentNotPending", err)
	}
}

func TestVerifyPayment_AmountMismatchFailsPayment(t *testing.T) {
	order := payableOrder(uuid.New(), "250.00")
	order.PaymentStatus = enum.PaymentStatusPending
	payment := pendingPayment(order.ID, "220.00")
	f := verifyFixture(order, payment)

	failCalled := false
	inner := f.store.failPaymentFn
	f.store.failPaymentFn = func(ctx context.Context, id uuid.UUID) (database.Payment, error) {
		failCalled = true
		return inner(ctx, id)
	}

	var finalStatus string
	innerSet := f.store.setOrderPaymentStatusFn
	f.store.setOrderPaymentStatusFn = func(ctx context.Context, arg database.SetOrderPaymentStatusParams) (database.Order, error) {
		finalStatus = arg.PaymentStatus
		return innerSet(ctx, arg)
	}

	_, err := f.service().VerifyPayment(context.Background(), payment.Reference)
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("error: got %v, want ErrAmountMismatch", err)
	}
	if !failCalled {
		t.Error("expected FailPayment to be called")
	}
	if finalStatus != enum.PaymentStatusFailed {
		t.Errorf("order payment_status: got %s, want FAILED", finalStatus)
	}
	if len(f.hub.events) != 0 {
		t.Errorf("no broadcast expected on mismatch, got %v", f.hub.events)
	}
}
