package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"
	"freshdrop/internal/service/order/infrastructure"
	"freshdrop/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var errStoreDown = &domain.PersistenceError{Op: "test", Err: errors.New("store down")}

// flakyRepo 包装真实仓储，按需注入故障
type flakyRepo struct {
	domain.OrderRepository
	failCreate   bool
	failAttach   bool
	failMarkPaid bool
	failClaim    bool
}

func (r *flakyRepo) Create(ctx context.Context, o *domain.Order) error {
	if r.failCreate {
		return errStoreDown
	}
	return r.OrderRepository.Create(ctx, o)
}

func (r *flakyRepo) AttachSessionRef(ctx context.Context, id, ref string) error {
	if r.failAttach {
		return errStoreDown
	}
	return r.OrderRepository.AttachSessionRef(ctx, id, ref)
}

func (r *flakyRepo) MarkPaid(ctx context.Context, id, ref string, at time.Time) (bool, error) {
	if r.failMarkPaid {
		return false, errStoreDown
	}
	return r.OrderRepository.MarkPaid(ctx, id, ref, at)
}

func (r *flakyRepo) ClaimGuestOrders(ctx context.Context, email, owner string, at time.Time) (int64, error) {
	if r.failClaim {
		return 0, errStoreDown
	}
	return r.OrderRepository.ClaimGuestOrders(ctx, email, owner, at)
}

type fakeProfiles map[string]*domain.Profile

func (f fakeProfiles) FindByID(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// fakeGateway 模拟支付方；签名为 "valid" 时返回 webhookEvent
type fakeGateway struct {
	mu           sync.Mutex
	createErr    error
	emptyURL     bool
	sessions     map[string]*port.CheckoutSession
	requests     []port.CheckoutRequest
	webhookEvent *port.PaymentEvent
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*port.CheckoutSession{}}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req port.CheckoutRequest) (*port.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	s := &port.CheckoutSession{ID: "cs_" + req.OrderID, OrderID: req.OrderID}
	if !g.emptyURL {
		s.URL = "https://checkout.example/pay/" + s.ID
	}
	g.sessions[s.ID] = s
	return s, nil
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (*port.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) ParseWebhook(_ []byte, sig string) (*port.PaymentEvent, error) {
	if sig != "valid" || g.webhookEvent == nil {
		return nil, domain.ErrInvalidSignature
	}
	ev := *g.webhookEvent
	return &ev, nil
}

func (g *fakeGateway) markPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id].Paid = true
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []domain.OrderEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []domain.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OrderEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeDedup struct {
	mu        sync.Mutex
	claimErr  error
	claimed   map[string]bool
	claimTTL  map[string]time.Duration
	completed map[string]time.Duration
	released  []string
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{
		claimed:   map[string]bool{},
		claimTTL:  map[string]time.Duration{},
		completed: map[string]time.Duration{},
	}
}

func (d *fakeDedup) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimErr != nil {
		return false, d.claimErr
	}
	if d.claimed[id] {
		return false, nil
	}
	d.claimed[id] = true
	d.claimTTL[id] = ttl
	return true, nil
}

func (d *fakeDedup) Complete(_ context.Context, id string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed[id] = ttl
	return nil
}

func (d *fakeDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, id)
	d.released = append(d.released, id)
	return nil
}

type fixture struct {
	svc       *OrderApplicationService
	repo      *flakyRepo
	profiles  fakeProfiles
	gateway   *fakeGateway
	publisher *fakePublisher
	dedup     *fakeDedup
	loc       *time.Location
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenInMemoryDB(t)
	require.NoError(t, infrastructure.Migrate(db))

	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	f := &fixture{
		repo:      &flakyRepo{OrderRepository: infrastructure.NewGormOrderRepository(db)},
		profiles:  fakeProfiles{"admin-1": {ID: "admin-1", Role: "admin"}, "user-1": {ID: "user-1", Role: "customer"}},
		gateway:   newFakeGateway(),
		publisher: &fakePublisher{},
		dedup:     newFakeDedup(),
		loc:       loc,
		now:       time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC),
	}
	seq := 0
	f.svc = NewOrderApplicationService(f.repo, f.profiles, noop.NewTracerProvider().Tracer("test"), nil,
		f.gateway, f.publisher, f.dedup, Options{
			Pricing: func() domain.Pricing {
				return domain.Pricing{PricePerKg: decimal.NewFromInt(60), Currency: "sek", Location: loc}
			},
			CallTimeout: time.Second,
			Now:         func() time.Time { return f.now },
			NewID: func() string {
				seq++
				return fmt.Sprintf("id-%d", seq)
			},
		})
	return f
}

func validRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		Email:             "a@b.se",
		Name:              "A B",
		Phone:             "0701234567",
		AddressLine1:      "Gata 1",
		PostalCode:        "12345",
		City:              "Stad",
		PickupDate:        "2024-06-01",
		PickupWindow:      "08:00-10:00",
		EstimatedWeightKg: "5",
	}
}
