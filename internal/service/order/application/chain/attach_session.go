package chain

import (
	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"
)

// AttachSessionHandler 把会话 id 回写到订单。
// 回写失败只记录对账缺口：webhook 携带 order_id，到时会回填会话引用。
type AttachSessionHandler struct {
	NextHandler
	repo domain.OrderRepository
}

func NewAttachSessionHandler(repo domain.OrderRepository) *AttachSessionHandler {
	return &AttachSessionHandler{repo: repo}
}

func (h *AttachSessionHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.AttachSession")
	defer span.End()

	o := orderCtx.Order
	sessionID := orderCtx.Session.ID

	callCtx, cancel := orderCtx.WithCallTimeout(ctx)
	err := h.repo.AttachSessionRef(callCtx, o.ID, sessionID)
	cancel()
	if err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", o.ID).
			Str("session_id", sessionID).
			Str("op", "attach_session").
			Msg("Reconciliation gap: checkout session not attached to order")
	} else {
		o.PaymentSessionRef = sessionID
		span.AddEvent("Checkout session attached.")
	}

	return h.executeNext(orderCtx)
}
