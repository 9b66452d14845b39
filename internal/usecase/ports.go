package usecase

import (
	"context"
	"time"

	domain "checkout-api/internal/entity"
	"checkout-api/internal/gateway/paypal"
)

// Persistence shape (kept out of domain).
type OrderRecord struct {
	ID              string
	Status          string
	Currency        string
	ProviderOrderID string
	SubtotalCents   int64
	TaxCents        int64
	ShippingCents   int64
	DiscountCents   int64
	TotalCents      int64
	CustomerJSON    string
	ItemsJSON       string
	Version         int64
}

type CaptureRecord struct {
	OrderID         string
	ProviderOrderID string
	CaptureID       string
	Status          string
	AmountCents     int64
	Currency        string
	CreatedAt       time.Time
}

type OrderRepo interface {
	Create(ctx context.Context, o *OrderRecord) error
	GetByID(ctx context.Context, id string) (*OrderRecord, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*OrderRecord, error)
	SetProviderOrderID(ctx context.Context, id, providerOrderID string) error
	// UpdateStatusIf applies a guarded transition; false means nothing
	// matched (not found or status already moved).
	UpdateStatusIf(ctx context.Context, id string, fromStatus, toStatus string) (bool, error)
}

type CaptureRepo interface {
	// Record inserts the capture row; inserting the same capture id twice is
	// a no-op.
	Record(ctx context.Context, c *CaptureRecord) error
	GetByOrderID(ctx context.Context, orderID string) (*CaptureRecord, error)
}

// WebhookEventRepo deduplicates provider webhook deliveries.
type WebhookEventRepo interface {
	// MarkProcessed reserves the event id; false means the event was already
	// delivered and must be discarded.
	MarkProcessed(ctx context.Context, eventID, eventType, providerOrderID string) (bool, error)
	// Clear releases a reservation after a failed apply so the provider's
	// redelivery is not swallowed.
	Clear(ctx context.Context, eventID string) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, error)
}

// PaymentGateway is the outbound port to the payment provider. The paypal
// client is the only implementation.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, o *domain.Order) (paypal.CreatedOrder, error)
	GetOrder(ctx context.Context, providerOrderID string) (paypal.ProviderOrder, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (domain.CaptureResult, error)
}

// EventPublisher pushes order status changes to downstream consumers.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, msg OrderStatusChangedMsg) error
}

// WorkQueue carries deferred work that must survive the request that
// produced it.
type WorkQueue interface {
	EnqueueCheckoutAudit(ctx context.Context, msg CheckoutAuditMsg) error
}
