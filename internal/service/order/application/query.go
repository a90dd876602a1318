package application

import (
	"context"

	"freshdrop/internal/pkg/auth"
	"freshdrop/internal/service/order/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// GetOrder 返回订单详情。管理员和订单所有者可见；
// 访客订单的 id 本身就是凭证，持有者即可查看。
// 无权查看时返回 ErrNotFound，不暴露订单是否存在。
func (s *OrderApplicationService) GetOrder(ctx context.Context, principal *auth.Principal, orderID string) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()

	callCtx, cancel := s.withTimeout(ctx)
	o, err := s.orderRepo.FindByID(callCtx, orderID)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch {
	case o.IsGuest():
	case principal != nil && principal.UserID == o.OwnerID:
	case s.isAdmin(ctx, principal):
	default:
		return nil, domain.ErrNotFound
	}
	return ToOrderView(o, s.location()), nil
}

// ListMyOrders 返回调用方自己的订单，新的在前
func (s *OrderApplicationService) ListMyOrders(ctx context.Context, principal *auth.Principal) ([]*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListMyOrders")
	defer span.End()

	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}
	callCtx, cancel := s.withTimeout(ctx)
	orders, err := s.orderRepo.ListByOwner(callCtx, principal.UserID)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return toOrderViews(orders, s.location()), nil
}

// ListAllOrders 管理员分页查看全部订单，新的在前
func (s *OrderApplicationService) ListAllOrders(ctx context.Context, principal *auth.Principal, limit, offset int) ([]*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListAllOrders")
	defer span.End()

	if err := s.requireAdmin(ctx, principal); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	callCtx, cancel := s.withTimeout(ctx)
	orders, err := s.orderRepo.List(callCtx, limit, offset)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return toOrderViews(orders, s.location()), nil
}
