package chain

import (
	"errors"
	"fmt"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CheckoutSessionHandler 为订单创建托管收银台会话。
// 失败时订单保留为未支付且没有会话引用，不做清理。
type CheckoutSessionHandler struct {
	NextHandler
}

func (h *CheckoutSessionHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.CheckoutSession")
	defer span.End()

	o := orderCtx.Order
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int64("order.total", o.EstimatedTotalPrice),
	)

	callCtx, cancel := orderCtx.WithCallTimeout(ctx)
	session, err := orderCtx.Gateway.CreateCheckoutSession(callCtx, port.CheckoutRequest{
		OrderID:       o.ID,
		Description:   fmt.Sprintf("FreshDrop tvätt %s kg", o.EstimatedWeightKg.String()),
		Amount:        o.EstimatedTotalPrice,
		Currency:      o.Currency,
		CustomerEmail: o.Contact.Email,
	})
	cancel()
	if err == nil && (session == nil || session.URL == "") {
		err = errors.New("checkout session without redirect url")
	}
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentGateway) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
		}
		orderCtx.Metrics.CheckoutFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create checkout session")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Str("op", "create_checkout_session").
			Msg("Order left unpaid without checkout session")
		return err
	}

	orderCtx.Session = session
	span.AddEvent("Checkout session created.")
	return h.executeNext(orderCtx)
}
