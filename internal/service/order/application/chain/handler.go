package chain

import (
	"context"
	"time"

	"freshdrop/internal/pkg/metrics"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/trace"
)

// OrderContext 在下单流程中传递上下文数据。
// 流程没有补偿：后续步骤失败时，已完成的步骤保持原样。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order
	Tracer trace.Tracer

	// 依赖出站端口
	Gateway   port.PaymentGateway
	Publisher port.EventPublisher
	Metrics   *metrics.Registry

	// 每次外部调用的超时
	CallTimeout time.Duration
	Now         func() time.Time
	NewEventID  func() string

	// 流程产出
	Session *port.CheckoutSession
}

// WithCallTimeout 为一次外部调用派生带超时的 context
func (c *OrderContext) WithCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.CallTimeout)
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
