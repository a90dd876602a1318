package chain

import (
	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
)

// PublishPlacedHandler 是流程的最后一步，发布 order.placed 事件，失败不影响下单结果。
type PublishPlacedHandler struct {
	NextHandler
}

func (h *PublishPlacedHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.PublishPlaced")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("event.type", string(domain.EventOrderPlaced)),
	)

	event := domain.NewOrderEvent(orderCtx.NewEventID(), domain.EventOrderPlaced, orderCtx.Order, orderCtx.Now())
	callCtx, cancel := orderCtx.WithCallTimeout(ctx)
	err := orderCtx.Publisher.Publish(callCtx, event)
	cancel()
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderCtx.Order.ID).Msg("Failed to publish order.placed")
		span.RecordError(err)
	}

	return h.executeNext(orderCtx)
}
