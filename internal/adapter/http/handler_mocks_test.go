package http

import (
	"context"
	"sync"

	domain "checkout-api/internal/entity"
	"checkout-api/internal/gateway/paypal"
	"checkout-api/internal/security"
	"checkout-api/internal/usecase"
)

// Minimal in-memory ports for wiring real use cases behind the handlers.

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*usecase.OrderRecord
	byProv map[string]string
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*usecase.OrderRecord{}, byProv: map[string]string{}}
}

func (r *memOrderRepo) put(o *usecase.OrderRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	if o.ProviderOrderID != "" {
		r.byProv[o.ProviderOrderID] = o.ID
	}
}

func (r *memOrderRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return o.Status
	}
	return ""
}

func (r *memOrderRepo) Create(ctx context.Context, o *usecase.OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return usecase.ErrDuplicate
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, usecase.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetByProviderOrderID(ctx context.Context, pid string) (*usecase.OrderRecord, error) {
	r.mu.Lock()
	id, ok := r.byProv[pid]
	r.mu.Unlock()
	if !ok {
		return nil, usecase.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memOrderRepo) SetProviderOrderID(ctx context.Context, id, pid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return usecase.ErrNotFound
	}
	o.ProviderOrderID = pid
	r.byProv[pid] = id
	return nil
}

func (r *memOrderRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.Version++
	return true, nil
}

type memCaptureRepo struct {
	mu      sync.Mutex
	byOrder map[string]*usecase.CaptureRecord
}

func newMemCaptureRepo() *memCaptureRepo {
	return &memCaptureRepo{byOrder: map[string]*usecase.CaptureRecord{}}
}

func (r *memCaptureRepo) Record(ctx context.Context, c *usecase.CaptureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[c.OrderID]; ok {
		return nil
	}
	cp := *c
	r.byOrder[c.OrderID] = &cp
	return nil
}

func (r *memCaptureRepo) GetByOrderID(ctx context.Context, orderID string) (*usecase.CaptureRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byOrder[orderID]
	if !ok {
		return nil, usecase.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type memEventRepo struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemEventRepo() *memEventRepo { return &memEventRepo{seen: map[string]bool{}} }

func (r *memEventRepo) MarkProcessed(ctx context.Context, eventID, eventType, pid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[eventID] {
		return false, nil
	}
	r.seen[eventID] = true
	return true, nil
}

func (r *memEventRepo) Clear(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, eventID)
	return nil
}

type memIdem struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newMemIdem() *memIdem { return &memIdem{locks: map[string]bool{}, values: map[string]string{}} }

func (f *memIdem) TryLock(ctx context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := scope + ":" + key
	if f.locks[k] {
		return false, nil
	}
	f.locks[k] = true
	return true, nil
}

func (f *memIdem) Remember(ctx context.Context, scope, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[scope+":"+key] = value
	return nil
}

func (f *memIdem) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[scope+":"+key]
	return v, ok, nil
}

type memCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMemCache() *memCache { return &memCache{statuses: map[string]string{}} }

func (f *memCache) SetStatus(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
	return nil
}

func (f *memCache) GetStatus(ctx context.Context, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[orderID], nil
}

type stubGateway struct {
	createFunc  func(ctx context.Context, o *domain.Order) (paypal.CreatedOrder, error)
	getFunc     func(ctx context.Context, pid string) (paypal.ProviderOrder, error)
	captureFunc func(ctx context.Context, pid string) (domain.CaptureResult, error)
}

func (g *stubGateway) CreateOrder(ctx context.Context, o *domain.Order) (paypal.CreatedOrder, error) {
	if g.createFunc != nil {
		return g.createFunc(ctx, o)
	}
	return paypal.CreatedOrder{ID: "PP-" + o.ID, Status: "CREATED", ApproveURL: "https://provider.test/approve/" + o.ID}, nil
}

func (g *stubGateway) GetOrder(ctx context.Context, pid string) (paypal.ProviderOrder, error) {
	if g.getFunc != nil {
		return g.getFunc(ctx, pid)
	}
	return paypal.ProviderOrder{ID: pid, Status: "CREATED", Raw: []byte(`{"id":"` + pid + `","status":"CREATED"}`)}, nil
}

func (g *stubGateway) CaptureOrder(ctx context.Context, pid string) (domain.CaptureResult, error) {
	if g.captureFunc != nil {
		return g.captureFunc(ctx, pid)
	}
	return domain.CaptureResult{
		ProviderOrderID: pid,
		CaptureID:       "CAP-1",
		Status:          "COMPLETED",
		Amount:          domain.Money{Cents: 7097, Currency: "USD"},
	}, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	return nil
}

type nopQueue struct{}

func (nopQueue) EnqueueCheckoutAudit(ctx context.Context, msg usecase.CheckoutAuditMsg) error {
	return nil
}

type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(t security.Transmission, body []byte) error { return v.err }
