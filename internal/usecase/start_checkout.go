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

const idemScope = "checkout"

type StartCheckoutOutput struct {
	ProviderOrderID string
	ApproveURL      string
	Status          string
}

// StartCheckout validates the order, persists it and creates the matching
// provider order. Replaying the same order id returns the previously created
// provider order instead of creating a second one.
type StartCheckout struct {
	repo   OrderRepo
	idem   IdempotencyStore
	gw     PaymentGateway
	jobs   WorkQueue
	events EventPublisher
	log    *slog.Logger
}

func NewStartCheckout(repo OrderRepo, idem IdempotencyStore, gw PaymentGateway, jobs WorkQueue, events EventPublisher) *StartCheckout {
	return &StartCheckout{
		repo:   repo,
		idem:   idem,
		gw:     gw,
		jobs:   jobs,
		events: events,
		log:    logging.New("start-checkout"),
	}
}

func (uc *StartCheckout) Execute(ctx context.Context, o *domain.Order) (StartCheckoutOutput, error) {
	// Local validation never reaches the provider.
	if err := o.Validate(); err != nil {
		return StartCheckoutOutput{}, err
	}

	// Fast path: idempotency recall
	if pid, ok, _ := uc.idem.Recall(ctx, idemScope, o.ID); ok {
		return StartCheckoutOutput{ProviderOrderID: pid, Status: string(domain.StatusCreated)}, nil
	}
	ok, err := uc.idem.TryLock(ctx, idemScope, o.ID)
	if err != nil {
		return StartCheckoutOutput{}, err
	}
	if !ok {
		return StartCheckoutOutput{}, ErrDuplicate
	}

	o.Status = domain.StatusCreated
	rec, err := toRecord(o)
	if err != nil {
		return StartCheckoutOutput{}, err
	}
	if err := uc.repo.Create(ctx, rec); err != nil {
		return StartCheckoutOutput{}, err
	}

	created, err := uc.gw.CreateOrder(ctx, o)
	if err != nil {
		// Ambiguous outcomes stay Created: the provider order may exist and
		// a status re-check decides. Definitive failures are terminal.
		if !errors.Is(err, paypal.ErrAmbiguousOutcome) {
			if _, markErr := uc.repo.UpdateStatusIf(ctx, o.ID, string(domain.StatusCreated), string(domain.StatusFailed)); markErr != nil {
				uc.log.Error("mark order failed", "order_id", o.ID, "err", markErr)
			}
		}
		uc.log.Error("provider order creation failed", "order_id", o.ID, "err", err)
		return StartCheckoutOutput{}, err
	}

	if err := uc.repo.SetProviderOrderID(ctx, o.ID, created.ID); err != nil {
		return StartCheckoutOutput{}, err
	}
	o.ProviderOrderID = created.ID

	_ = uc.idem.Remember(ctx, idemScope, o.ID, created.ID)

	// Deferred audit instead of logging after the response is gone.
	if err := uc.jobs.EnqueueCheckoutAudit(ctx, CheckoutAuditMsg{
		OrderID:         o.ID,
		ProviderOrderID: created.ID,
		Action:          "checkout_processed",
		At:              time.Now().UTC(),
	}); err != nil {
		uc.log.Error("enqueue checkout audit", "order_id", o.ID, "err", err)
	}

	if err := uc.events.PublishStatusChanged(ctx, OrderStatusChangedMsg{
		OrderID:         o.ID,
		ProviderOrderID: created.ID,
		Status:          string(domain.StatusCreated),
		TotalCents:      o.Amounts.Total,
		Currency:        o.Currency,
		Source:          "checkout",
	}); err != nil {
		uc.log.Error("publish status change", "order_id", o.ID, "err", err)
	}

	return StartCheckoutOutput{
		ProviderOrderID: created.ID,
		ApproveURL:      created.ApproveURL,
		Status:          string(domain.StatusCreated),
	}, nil
}

func toRecord(o *domain.Order) (*OrderRecord, error) {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return nil, err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	return &OrderRecord{
		ID:            o.ID,
		Status:        string(o.Status),
		Currency:      o.Currency,
		SubtotalCents: o.Amounts.Subtotal,
		TaxCents:      o.Amounts.Tax,
		ShippingCents: o.Amounts.Shipping,
		DiscountCents: o.Amounts.Discount,
		TotalCents:    o.Amounts.Total,
		CustomerJSON:  string(customer),
		ItemsJSON:     string(items),
	}, nil
}
