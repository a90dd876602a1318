package application

import (
	"context"

	"freshdrop/internal/pkg/auth"
	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/application/chain"
	"freshdrop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CreateOrder 校验输入、计算价格、落库、创建收银台会话并返回跳转地址。
// principal 为 nil 表示访客下单。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, principal *auth.Principal, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	ownerID := ""
	if principal != nil {
		ownerID = principal.UserID
	}

	// 1. 校验并计算价格，价格快照在此刻确定
	orderEntity, err := domain.NewOrder(s.opts.NewID(), ownerID, req.toDraft(), s.opts.Pricing(), s.opts.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid order input")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", orderEntity.ID),
		attribute.Bool("order.guest", orderEntity.IsGuest()),
	)

	orderContext := &chain.OrderContext{
		Ctx:         ctx,
		Order:       orderEntity,
		Tracer:      s.tracer,
		Gateway:     s.gateway,
		Publisher:   s.publisher,
		Metrics:     s.metrics,
		CallTimeout: s.opts.CallTimeout,
		Now:         s.opts.Now,
		NewEventID:  s.opts.NewID,
	}

	// 2. 执行责任链：落库 → 收银台会话 → 回写会话 → 事件
	if err := s.buildCreationChain().Handle(orderContext); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order creation chain failed")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderEntity.ID).
		Int64("total", orderEntity.EstimatedTotalPrice).
		Bool("guest", orderEntity.IsGuest()).
		Msg("Order created, awaiting payment")
	span.AddEvent("Order created and checkout session issued.")

	return &CreateOrderResponse{
		OrderID:             orderEntity.ID,
		CheckoutURL:         orderContext.Session.URL,
		EstimatedTotalPrice: orderEntity.EstimatedTotalPrice,
		Currency:            orderEntity.Currency,
		DeliveryEstimateAt:  orderEntity.DeliveryEstimateAt,
	}, nil
}
