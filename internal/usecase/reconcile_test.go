package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "checkout-api/internal/entity"
)

func approvedEvent(id string) WebhookEvent {
	return WebhookEvent{
		EventID:         id,
		EventType:       "CHECKOUT.ORDER.APPROVED",
		ProviderOrderID: "PP-4001",
		Payload:         json.RawMessage(`{"id":"PP-4001","status":"APPROVED"}`),
		ReceivedAt:      time.Now().UTC(),
	}
}

func createdOrderRecord() *OrderRecord {
	return &OrderRecord{
		ID:              "ORD-4001",
		Status:          string(domain.StatusCreated),
		Currency:        "USD",
		ProviderOrderID: "PP-4001",
		TotalCents:      7097,
	}
}

func TestReconcile_ApprovedEventTransitionsOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.put(createdOrderRecord())
	cache := newFakeCache()
	pub := &fakePublisher{}
	uc := NewReconcile(repo, newFakeCaptureRepo(), newFakeEventRepo(), cache, pub)

	require.NoError(t, uc.Execute(context.Background(), approvedEvent("WH-1")))

	assert.Equal(t, string(domain.StatusApproved), repo.status("ORD-4001"))
	status, _ := cache.GetStatus(context.Background(), "ORD-4001")
	assert.Equal(t, string(domain.StatusApproved), status)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, "webhook", pub.published()[0].Source)
}

func TestReconcile_DuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.put(createdOrderRecord())
	pub := &fakePublisher{}
	uc := NewReconcile(repo, newFakeCaptureRepo(), newFakeEventRepo(), newFakeCache(), pub)

	require.NoError(t, uc.Execute(context.Background(), approvedEvent("WH-1")))
	require.NoError(t, uc.Execute(context.Background(), approvedEvent("WH-1")))

	assert.Equal(t, string(domain.StatusApproved), repo.status("ORD-4001"))
	assert.Len(t, pub.published(), 1, "second delivery must not publish again")
}

func TestReconcile_UnknownEventTypeIgnored(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.put(createdOrderRecord())
	uc := NewReconcile(repo, newFakeCaptureRepo(), newFakeEventRepo(), newFakeCache(), &fakePublisher{})

	ev := approvedEvent("WH-2")
	ev.EventType = "CUSTOMER.DISPUTE.CREATED"
	require.NoError(t, uc.Execute(context.Background(), ev))
	assert.Equal(t, string(domain.StatusCreated), repo.status("ORD-4001"))
}

func TestReconcile_UnknownProviderOrderIgnored(t *testing.T) {
	uc := NewReconcile(newFakeOrderRepo(), newFakeCaptureRepo(), newFakeEventRepo(), newFakeCache(), &fakePublisher{})
	require.NoError(t, uc.Execute(context.Background(), approvedEvent("WH-3")))
}

func TestReconcile_InvalidTransitionDropped(t *testing.T) {
	repo := newFakeOrderRepo()
	rec := createdOrderRecord()
	rec.Status = string(domain.StatusCaptured)
	repo.put(rec)
	uc := NewReconcile(repo, newFakeCaptureRepo(), newFakeEventRepo(), newFakeCache(), &fakePublisher{})

	ev := approvedEvent("WH-4")
	ev.EventType = "PAYMENT.CAPTURE.DENIED"
	require.NoError(t, uc.Execute(context.Background(), ev), "an out-of-order event is dropped, not an error")
	assert.Equal(t, string(domain.StatusCaptured), repo.status("ORD-4001"))
}

func TestReconcile_CaptureCompletedRecordsCapture(t *testing.T) {
	repo := newFakeOrderRepo()
	rec := createdOrderRecord()
	rec.Status = string(domain.StatusApproved)
	repo.put(rec)
	captures := newFakeCaptureRepo()
	uc := NewReconcile(repo, captures, newFakeEventRepo(), newFakeCache(), &fakePublisher{})

	ev := WebhookEvent{
		EventID:         "WH-5",
		EventType:       "PAYMENT.CAPTURE.COMPLETED",
		ProviderOrderID: "PP-4001",
		Payload: json.RawMessage(`{
			"id": "CAP-WH-5",
			"status": "COMPLETED",
			"amount": {"currency_code": "USD", "value": "70.97"}
		}`),
		ReceivedAt: time.Now().UTC(),
	}
	require.NoError(t, uc.Execute(context.Background(), ev))

	assert.Equal(t, string(domain.StatusCaptured), repo.status("ORD-4001"))
	c, err := captures.GetByOrderID(context.Background(), "ORD-4001")
	require.NoError(t, err)
	assert.Equal(t, "CAP-WH-5", c.CaptureID)
	assert.Equal(t, int64(7097), c.AmountCents)
	assert.Equal(t, "USD", c.Currency)
}

func TestReconcile_LostRaceDropsEvent(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.put(createdOrderRecord())
	// Another writer moves the order between the read and the guarded update.
	repo.updateFunc = func(ctx context.Context, id, from, to string) (bool, error) {
		return false, nil
	}
	pub := &fakePublisher{}
	uc := NewReconcile(repo, newFakeCaptureRepo(), newFakeEventRepo(), newFakeCache(), pub)

	require.NoError(t, uc.Execute(context.Background(), approvedEvent("WH-6")))
	assert.Empty(t, pub.published())
}

func TestReconcile_ApplyFailureReleasesReservation(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.put(createdOrderRecord())
	boom := errors.New("db down")
	repo.updateFunc = func(ctx context.Context, id, from, to string) (bool, error) {
		return false, boom
	}
	events := newFakeEventRepo()
	uc := NewReconcile(repo, newFakeCaptureRepo(), events, newFakeCache(), &fakePublisher{})

	err := uc.Execute(context.Background(), approvedEvent("WH-7"))
	require.ErrorIs(t, err, boom)

	// The redelivery is treated as first, so the transition retries.
	repo.updateFunc = nil
	require.NoError(t, uc.Execute(context.Background(), approvedEvent("WH-7")))
	assert.Equal(t, string(domain.StatusApproved), repo.status("ORD-4001"))
}
