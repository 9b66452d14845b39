package usecase

import (
	"context"
	"sync"

	domain "checkout-api/internal/entity"
	"checkout-api/internal/gateway/paypal"
)

// In-memory fakes for the outbound ports. Function fields override the
// default behavior per test.

type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]*OrderRecord
	byProv  map[string]string
	creates int

	createFunc func(ctx context.Context, o *OrderRecord) error
	updateFunc func(ctx context.Context, id, from, to string) (bool, error)
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*OrderRecord{}, byProv: map[string]string{}}
}

func (r *fakeOrderRepo) put(o *OrderRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	if o.ProviderOrderID != "" {
		r.byProv[o.ProviderOrderID] = o.ID
	}
}

func (r *fakeOrderRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return o.Status
	}
	return ""
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *OrderRecord) error {
	if r.createFunc != nil {
		return r.createFunc(ctx, o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return ErrDuplicate
	}
	cp := *o
	r.orders[o.ID] = &cp
	r.creates++
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id string) (*OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByProviderOrderID(ctx context.Context, pid string) (*OrderRecord, error) {
	r.mu.Lock()
	id, ok := r.byProv[pid]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) SetProviderOrderID(ctx context.Context, id, pid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.ProviderOrderID = pid
	r.byProv[pid] = id
	return nil
}

func (r *fakeOrderRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	if r.updateFunc != nil {
		return r.updateFunc(ctx, id, from, to)
	}
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

type fakeCaptureRepo struct {
	mu       sync.Mutex
	byOrder  map[string]*CaptureRecord
	recorded int
}

func newFakeCaptureRepo() *fakeCaptureRepo {
	return &fakeCaptureRepo{byOrder: map[string]*CaptureRecord{}}
}

func (r *fakeCaptureRepo) Record(ctx context.Context, c *CaptureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[c.OrderID]; ok {
		return nil // duplicate capture id, no-op
	}
	cp := *c
	r.byOrder[c.OrderID] = &cp
	r.recorded++
	return nil
}

func (r *fakeCaptureRepo) GetByOrderID(ctx context.Context, orderID string) (*CaptureRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeEventRepo struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeEventRepo() *fakeEventRepo { return &fakeEventRepo{seen: map[string]bool{}} }

func (r *fakeEventRepo) MarkProcessed(ctx context.Context, eventID, eventType, pid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[eventID] {
		return false, nil
	}
	r.seen[eventID] = true
	return true, nil
}

func (r *fakeEventRepo) Clear(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, eventID)
	return nil
}

type fakeIdem struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locks: map[string]bool{}, values: map[string]string{}}
}

func (f *fakeIdem) TryLock(ctx context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := scope + ":" + key
	if f.locks[k] {
		return false, nil
	}
	f.locks[k] = true
	return true, nil
}

func (f *fakeIdem) Remember(ctx context.Context, scope, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[scope+":"+key] = value
	return nil
}

func (f *fakeIdem) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[scope+":"+key]
	return v, ok, nil
}

type fakeCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{statuses: map[string]string{}} }

func (f *fakeCache) SetStatus(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
	return nil
}

func (f *fakeCache) GetStatus(ctx context.Context, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[orderID], nil
}

type fakeGateway struct {
	createFunc  func(ctx context.Context, o *domain.Order) (paypal.CreatedOrder, error)
	getFunc     func(ctx context.Context, pid string) (paypal.ProviderOrder, error)
	captureFunc func(ctx context.Context, pid string) (domain.CaptureResult, error)

	createCalls  int
	getCalls     int
	captureCalls int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, o *domain.Order) (paypal.CreatedOrder, error) {
	g.createCalls++
	if g.createFunc != nil {
		return g.createFunc(ctx, o)
	}
	return paypal.CreatedOrder{ID: "PP-" + o.ID, Status: "CREATED", ApproveURL: "https://provider.test/approve/" + o.ID}, nil
}

func (g *fakeGateway) GetOrder(ctx context.Context, pid string) (paypal.ProviderOrder, error) {
	g.getCalls++
	if g.getFunc != nil {
		return g.getFunc(ctx, pid)
	}
	return paypal.ProviderOrder{ID: pid, Status: "CREATED"}, nil
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, pid string) (domain.CaptureResult, error) {
	g.captureCalls++
	if g.captureFunc != nil {
		return g.captureFunc(ctx, pid)
	}
	return domain.CaptureResult{
		ProviderOrderID: pid,
		CaptureID:       "CAP-1",
		Status:          "COMPLETED",
		Amount:          domain.Money{Cents: 6997, Currency: "USD"},
	}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []OrderStatusChangedMsg
}

func (p *fakePublisher) PublishStatusChanged(ctx context.Context, msg OrderStatusChangedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) published() []OrderStatusChangedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderStatusChangedMsg(nil), p.msgs...)
}

type fakeWorkQueue struct {
	mu   sync.Mutex
	jobs []CheckoutAuditMsg
}

func (q *fakeWorkQueue) EnqueueCheckoutAudit(ctx context.Context, msg CheckoutAuditMsg) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, msg)
	return nil
}
