package application

import (
	"context"
	"errors"

	"freshdrop/internal/pkg/auth"
	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// requireAdmin 要求调用方已认证且 profiles 中的角色为 admin
func (s *OrderApplicationService) requireAdmin(ctx context.Context, principal *auth.Principal) error {
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	callCtx, cancel := s.withTimeout(ctx)
	profile, err := s.profiles.FindByID(callCtx, principal.UserID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrForbidden
	}
	if err != nil {
		return err
	}
	if !profile.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func (s *OrderApplicationService) isAdmin(ctx context.Context, principal *auth.Principal) bool {
	return principal != nil && s.requireAdmin(ctx, principal) == nil
}

// UpdateFulfillmentStatus 管理员覆盖订单的履约状态，不限制流转方向。
// 支付状态不受影响。
func (s *OrderApplicationService) UpdateFulfillmentStatus(ctx context.Context, principal *auth.Principal, orderID, rawStatus string) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateFulfillmentStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	if err := s.requireAdmin(ctx, principal); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Admin authorization failed")
		return nil, err
	}

	status, err := domain.ParseFulfillmentStatus(rawStatus)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.status", string(status)))

	callCtx, cancel := s.withTimeout(ctx)
	err = s.orderRepo.UpdateFulfillmentStatus(callCtx, orderID, status, s.opts.Now())
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update status")
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Str("op", "update_status").Msg("Failed to update fulfillment status")
		}
		return nil, err
	}
	s.metrics.StatusUpdates.WithLabelValues(string(status)).Inc()

	callCtx, cancel = s.withTimeout(ctx)
	o, err := s.orderRepo.FindByID(callCtx, orderID)
	cancel()
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("status", string(status)).
		Str("admin_id", principal.UserID).
		Msg("Fulfillment status updated")
	s.publish(ctx, domain.EventOrderStatusChanged, o)

	return ToOrderView(o, s.location()), nil
}
