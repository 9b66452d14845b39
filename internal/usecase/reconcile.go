package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	domain "checkout-api/internal/entity"
	"checkout-api/internal/gateway/paypal"
	"checkout-api/internal/logging"
)

// WebhookEvent is a verified provider notification, normalized for
// reconciliation. The raw payload is not retained beyond this call.
type WebhookEvent struct {
	EventID         string
	EventType       string
	ProviderOrderID string
	Payload         json.RawMessage
	ReceivedAt      time.Time
}

// eventTransitions maps provider event types to local status targets.
var eventTransitions = map[string]domain.Status{
	"CHECKOUT.ORDER.APPROVED":   domain.StatusApproved,
	"PAYMENT.CAPTURE.COMPLETED": domain.StatusCaptured,
	"PAYMENT.CAPTURE.DENIED":    domain.StatusDenied,
}

// Reconcile applies verified webhook events to local order state. Applying
// the same event twice yields identical state: deliveries are deduplicated
// by event id and every transition is guarded.
type Reconcile struct {
	repo     OrderRepo
	captures CaptureRepo
	events   WebhookEventRepo
	cache    OrderCache
	pub      EventPublisher
	log      *slog.Logger
}

func NewReconcile(repo OrderRepo, captures CaptureRepo, events WebhookEventRepo, cache OrderCache, pub EventPublisher) *Reconcile {
	return &Reconcile{
		repo:     repo,
		captures: captures,
		events:   events,
		cache:    cache,
		pub:      pub,
		log:      logging.New("reconcile"),
	}
}

func (uc *Reconcile) Execute(ctx context.Context, ev WebhookEvent) error {
	first, err := uc.events.MarkProcessed(ctx, ev.EventID, ev.EventType, ev.ProviderOrderID)
	if err != nil {
		return err
	}
	if !first {
		uc.log.Info("duplicate webhook delivery discarded", "event_id", ev.EventID, "type", ev.EventType)
		return nil
	}

	if err := uc.apply(ctx, ev); err != nil {
		// Release the reservation so the provider's redelivery retries the
		// apply instead of being swallowed as a duplicate.
		if clearErr := uc.events.Clear(ctx, ev.EventID); clearErr != nil {
			uc.log.Error("clear webhook reservation", "event_id", ev.EventID, "err", clearErr)
		}
		return err
	}
	return nil
}

func (uc *Reconcile) apply(ctx context.Context, ev WebhookEvent) error {
	target, known := eventTransitions[ev.EventType]
	if !known {
		uc.log.Warn("ignoring unknown webhook event type", "event_id", ev.EventID, "type", ev.EventType)
		return nil
	}

	rec, err := uc.repo.GetByProviderOrderID(ctx, ev.ProviderOrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			uc.log.Warn("webhook references unknown provider order",
				"event_id", ev.EventID, "provider_order_id", ev.ProviderOrderID)
			return nil
		}
		return err
	}

	from := domain.Status(rec.Status)
	if from == target {
		// Already there, nothing to apply.
		return nil
	}
	if !domain.CanTransition(from, target) {
		uc.log.Warn("webhook requests invalid transition",
			"event_id", ev.EventID, "order_id", rec.ID, "from", from, "to", target)
		return nil
	}

	applied, err := uc.repo.UpdateStatusIf(ctx, rec.ID, string(from), string(target))
	if err != nil {
		return err
	}
	if !applied {
		// A capture call or another webhook moved the order first.
		uc.log.Warn("transition lost race, dropping event",
			"event_id", ev.EventID, "order_id", rec.ID, "from", from, "to", target)
		return nil
	}

	if target == domain.StatusCaptured {
		uc.recordCaptureFromEvent(ctx, rec, ev)
	}

	_ = uc.cache.SetStatus(ctx, rec.ID, string(target))

	if err := uc.pub.PublishStatusChanged(ctx, OrderStatusChangedMsg{
		OrderID:         rec.ID,
		ProviderOrderID: ev.ProviderOrderID,
		Status:          string(target),
		TotalCents:      rec.TotalCents,
		Currency:        rec.Currency,
		Source:          "webhook",
	}); err != nil {
		uc.log.Error("publish status change", "order_id", rec.ID, "err", err)
	}

	uc.log.Info("webhook reconciled", "event_id", ev.EventID, "order_id", rec.ID, "from", from, "to", target)
	return nil
}

// recordCaptureFromEvent persists the capture carried by a
// PAYMENT.CAPTURE.COMPLETED resource, so later capture calls replay it.
func (uc *Reconcile) recordCaptureFromEvent(ctx context.Context, rec *OrderRecord, ev WebhookEvent) {
	var resource struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	}
	if err := json.Unmarshal(ev.Payload, &resource); err != nil || resource.ID == "" {
		uc.log.Warn("capture event without usable resource", "event_id", ev.EventID, "order_id", rec.ID)
		return
	}

	cents := rec.TotalCents
	if c, err := paypal.ValueToCents(resource.Amount.Value); err == nil {
		cents = c
	}
	currency := resource.Amount.CurrencyCode
	if currency == "" {
		currency = rec.Currency
	}

	if err := uc.captures.Record(ctx, &CaptureRecord{
		OrderID:         rec.ID,
		ProviderOrderID: rec.ProviderOrderID,
		CaptureID:       resource.ID,
		Status:          resource.Status,
		AmountCents:     cents,
		Currency:        currency,
		CreatedAt:       ev.ReceivedAt,
	}); err != nil {
		uc.log.Error("record webhook capture", "event_id", ev.EventID, "order_id", rec.ID, "err", err)
	}
}
