package chain

import (
	"errors"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"

	"go.opentelemetry.io/otel/codes"
)

// PersistOrderHandler 插入未支付的新订单，失败时流程终止。
type PersistOrderHandler struct {
	NextHandler
	repo domain.OrderRepository
}

func NewPersistOrderHandler(repo domain.OrderRepository) *PersistOrderHandler {
	return &PersistOrderHandler{repo: repo}
}

func (h *PersistOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.PersistOrder")
	defer span.End()

	callCtx, cancel := orderCtx.WithCallTimeout(ctx)
	err := h.repo.Create(callCtx, orderCtx.Order)
	cancel()
	if err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = &domain.PersistenceError{Op: "create", Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist order")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderCtx.Order.ID).Str("op", "create").Msg("Failed to persist order")
		return err
	}
	orderCtx.Metrics.OrdersCreated.Inc()
	span.AddEvent("Order persisted as unpaid.")

	return h.executeNext(orderCtx)
}
