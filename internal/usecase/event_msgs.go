package usecase

import "time"

// Published on Kafka after every order status change.
type OrderStatusChangedMsg struct {
	OrderID         string `json:"orderId"`
	ProviderOrderID string `json:"providerOrderId"`
	Status          string `json:"status"`
	TotalCents      int64  `json:"totalCents"`
	Currency        string `json:"currency"`
	Source          string `json:"source"` // checkout | capture | webhook
}

// Enqueued on the work queue instead of fire-and-forget logging after the
// response is sent.
type CheckoutAuditMsg struct {
	OrderID         string    `json:"orderId"`
	ProviderOrderID string    `json:"providerOrderId"`
	Action          string    `json:"action"`
	At              time.Time `json:"at"`
}
