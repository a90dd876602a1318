// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/pkg/metrics"
	"freshdrop/internal/service/order/application/chain"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Options 是应用服务的运行参数
type Options struct {
	// Pricing 每次下单时调用一次，返回当前价格快照
	Pricing     func() domain.Pricing
	CallTimeout time.Duration
	// DedupProcessingTTL 处理中占位的时长，DedupTTL 处理成功后去重记录的时长
	DedupProcessingTTL time.Duration
	DedupTTL           time.Duration
	Now                func() time.Time
	NewID              func() string
}

// OrderApplicationService 只关注业务流程编排。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	profiles  domain.ProfileRepository
	tracer    trace.Tracer
	metrics   *metrics.Registry

	gateway   port.PaymentGateway
	publisher port.EventPublisher
	dedup     port.WebhookDeduplicator // 可为 nil

	opts Options
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, profiles domain.ProfileRepository, tracer trace.Tracer, m *metrics.Registry, gateway port.PaymentGateway, publisher port.EventPublisher, dedup port.WebhookDeduplicator, opts Options) *OrderApplicationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	if opts.DedupProcessingTTL <= 0 {
		opts.DedupProcessingTTL = time.Minute
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &OrderApplicationService{
		orderRepo: orderRepo, profiles: profiles,
		tracer: tracer, metrics: m,
		gateway: gateway, publisher: publisher, dedup: dedup,
		opts: opts}
}

func (s *OrderApplicationService) location() *time.Location {
	if loc := s.opts.Pricing().Location; loc != nil {
		return loc
	}
	return time.Local
}

// withTimeout 为一次外部调用派生带超时的 context，超时等同于该调用失败
func (s *OrderApplicationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

func (s *OrderApplicationService) buildCreationChain() chain.Handler {
	creationChain := chain.NewPersistOrderHandler(s.orderRepo)
	creationChain.
		SetNext(new(chain.CheckoutSessionHandler)).
		SetNext(chain.NewAttachSessionHandler(s.orderRepo)).
		SetNext(new(chain.PublishPlacedHandler))

	return creationChain
}

// publish 发布事件，失败只记录日志
func (s *OrderApplicationService) publish(ctx context.Context, typ domain.OrderEventType, o *domain.Order) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	event := domain.NewOrderEvent(s.opts.NewID(), typ, o, s.opts.Now())
	if err := s.publisher.Publish(callCtx, event); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Str("event", string(typ)).Msg("Failed to publish order event")
	}
}
