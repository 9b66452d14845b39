package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "checkout-api/internal/entity"
	"checkout-api/internal/gateway/paypal"
	"checkout-api/internal/logging"
)

// CapturePayment collects funds for a buyer-approved order. Capturing the
// same order twice returns the recorded CaptureResult without a second
// provider call.
type CapturePayment struct {
	repo     OrderRepo
	captures CaptureRepo
	gw       PaymentGateway
	cache    OrderCache
	events   EventPublisher
	log      *slog.Logger
}

func NewCapturePayment(repo OrderRepo, captures CaptureRepo, gw PaymentGateway, cache OrderCache, events EventPublisher) *CapturePayment {
	return &CapturePayment{
		repo:     repo,
		captures: captures,
		gw:       gw,
		cache:    cache,
		events:   events,
		log:      logging.New("capture-payment"),
	}
}

// Execute captures the order's funds. providerOrderID is optional; when
// the caller supplies one it must match the order's stored provider id.
func (uc *CapturePayment) Execute(ctx context.Context, orderID, providerOrderID string) (domain.CaptureResult, error) {
	rec, err := uc.repo.GetByID(ctx, orderID)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if providerOrderID != "" && rec.ProviderOrderID != "" && providerOrderID != rec.ProviderOrderID {
		return domain.CaptureResult{}, fmt.Errorf("%w: provider order %s does not belong to order %s", ErrInvalidState, providerOrderID, orderID)
	}

	// Idempotence: a recorded capture wins before any provider contact.
	if prev, err := uc.captures.GetByOrderID(ctx, orderID); err == nil && prev != nil {
		return fromCaptureRecord(prev), nil
	}

	// Captured with no capture row: a previous run collected the funds but
	// failed to persist the record. Rebuild it from the provider instead of
	// rejecting the retry.
	if rec.Status == string(domain.StatusCaptured) {
		if rec.ProviderOrderID == "" {
			return domain.CaptureResult{}, fmt.Errorf("%w: order %s is captured but has no provider order", ErrInvalidState, orderID)
		}
		res, err := uc.captureFromProvider(ctx, rec.ProviderOrderID)
		if err != nil {
			return domain.CaptureResult{}, err
		}
		uc.recordCapture(ctx, orderID, res)
		return res, nil
	}

	if rec.Status != string(domain.StatusApproved) {
		return domain.CaptureResult{}, fmt.Errorf("%w: order %s is %s", ErrInvalidState, orderID, rec.Status)
	}
	if rec.ProviderOrderID == "" {
		return domain.CaptureResult{}, fmt.Errorf("%w: order %s has no provider order", ErrInvalidState, orderID)
	}

	res, err := uc.gw.CaptureOrder(ctx, rec.ProviderOrderID)
	switch {
	case err == nil:
		// fallthrough to recording below

	case errors.Is(err, paypal.ErrAlreadyCaptured):
		// A prior capture completed (ours or via webhook): success, not
		// failure. Rebuild the result from the provider snapshot.
		res, err = uc.captureFromProvider(ctx, rec.ProviderOrderID)
		if err != nil {
			return domain.CaptureResult{}, err
		}

	case errors.Is(err, paypal.ErrAmbiguousOutcome):
		// Unknown outcome: no state change, caller must re-check via the
		// order snapshot before retrying.
		uc.log.Warn("capture outcome unknown", "order_id", orderID, "provider_order_id", rec.ProviderOrderID)
		return domain.CaptureResult{}, err

	case errors.Is(err, paypal.ErrOrderNotApproved):
		// Provider disagrees with our local Approved: surface as a state
		// conflict, the webhook that moved us to Approved may have raced.
		return domain.CaptureResult{}, fmt.Errorf("%w: %v", ErrInvalidState, err)

	default:
		var perr *paypal.ProviderError
		if errors.As(err, &perr) && perr.StatusCode < 500 {
			// Unrecoverable rejection.
			if _, markErr := uc.repo.UpdateStatusIf(ctx, orderID, string(domain.StatusApproved), string(domain.StatusFailed)); markErr != nil {
				uc.log.Error("mark order failed", "order_id", orderID, "err", markErr)
			}
		}
		uc.log.Error("capture failed", "order_id", orderID, "provider_order_id", rec.ProviderOrderID, "err", err)
		return domain.CaptureResult{}, err
	}

	// Guarded transition; zero rows means a webhook already moved the order,
	// which is the same outcome.
	if _, err := uc.repo.UpdateStatusIf(ctx, orderID, string(domain.StatusApproved), string(domain.StatusCaptured)); err != nil {
		return domain.CaptureResult{}, err
	}

	uc.recordCapture(ctx, orderID, res)

	_ = uc.cache.SetStatus(ctx, orderID, string(domain.StatusCaptured))

	if err := uc.events.PublishStatusChanged(ctx, OrderStatusChangedMsg{
		OrderID:         orderID,
		ProviderOrderID: res.ProviderOrderID,
		Status:          string(domain.StatusCaptured),
		TotalCents:      rec.TotalCents,
		Currency:        rec.Currency,
		Source:          "capture",
	}); err != nil {
		uc.log.Error("publish status change", "order_id", orderID, "err", err)
	}

	return res, nil
}

// recordCapture persists the capture row. Failures are logged, not
// returned: the funds moved, and the next Execute rebuilds the row from
// the provider snapshot.
func (uc *CapturePayment) recordCapture(ctx context.Context, orderID string, res domain.CaptureResult) {
	if err := uc.captures.Record(ctx, &CaptureRecord{
		OrderID:         orderID,
		ProviderOrderID: res.ProviderOrderID,
		CaptureID:       res.CaptureID,
		Status:          res.Status,
		AmountCents:     res.Amount.Cents,
		Currency:        res.Amount.Currency,
		CreatedAt:       res.Timestamp,
	}); err != nil {
		uc.log.Error("record capture", "order_id", orderID, "capture_id", res.CaptureID, "err", err)
	}
}

// captureFromProvider rebuilds a CaptureResult from the provider's order
// snapshot when the capture itself happened elsewhere.
func (uc *CapturePayment) captureFromProvider(ctx context.Context, providerOrderID string) (domain.CaptureResult, error) {
	snap, err := uc.gw.GetOrder(ctx, providerOrderID)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if cr, ok := paypal.CaptureFromOrderSnapshot(providerOrderID, snap.Raw); ok {
		return cr, nil
	}
	return domain.CaptureResult{
		ProviderOrderID: providerOrderID,
		Status:          snap.Status,
		Timestamp:       time.Now().UTC(),
	}, nil
}

func fromCaptureRecord(c *CaptureRecord) domain.CaptureResult {
	return domain.CaptureResult{
		ProviderOrderID: c.ProviderOrderID,
		CaptureID:       c.CaptureID,
		Status:          c.Status,
		Amount:          domain.Money{Cents: c.AmountCents, Currency: c.Currency},
		Timestamp:       c.CreatedAt,
	}
}
