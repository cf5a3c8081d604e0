package enum

// --- State machines (CHECK constrained in DB) ---

const (
	OrderStatusNew            = "NEW"
	OrderStatusConfirmed      = "CONFIRMED"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

const (
	PaymentIntentPending   = "PENDING"
	PaymentIntentCompleted = "COMPLETED"
	PaymentIntentFailed    = "FAILED"
)

// --- Roles ---

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleCustomer = "CUSTOMER"
)
