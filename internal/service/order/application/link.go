package application

import (
	"context"

	"freshdrop/internal/pkg/auth"
	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ClaimGuestOrders 把与调用方邮箱完全一致的访客订单归到其账号下。
// 重复调用是安全的：已有归属的订单不会再被匹配。
func (s *OrderApplicationService) ClaimGuestOrders(ctx context.Context, principal *auth.Principal) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "app.ClaimGuestOrders")
	defer span.End()

	if principal == nil {
		return 0, domain.ErrUnauthenticated
	}
	if principal.Email == "" {
		span.SetStatus(codes.Error, "Principal without email")
		return 0, domain.ErrMissingEmail
	}
	span.SetAttributes(attribute.String("user.id", principal.UserID))

	callCtx, cancel := s.withTimeout(ctx)
	linked, err := s.orderRepo.ClaimGuestOrders(callCtx, principal.Email, principal.UserID, s.opts.Now())
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to claim guest orders")
		logger.Ctx(ctx).Error().Err(err).Str("user_id", principal.UserID).Str("op", "claim_guest_orders").Msg("Guest order linking failed")
		return 0, err
	}

	s.metrics.GuestOrdersLinked.Add(float64(linked))
	if linked > 0 {
		logger.Ctx(ctx).Info().Str("user_id", principal.UserID).Int64("linked", linked).Msg("Guest orders linked to account")
	}
	return linked, nil
}

// HandleIdentityAuthenticated 在登录或注册完成后触发关联。
// 关联失败不能阻塞认证，这里只记录日志。
func (s *OrderApplicationService) HandleIdentityAuthenticated(ctx context.Context, event *domain.IdentityAuthenticated) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleIdentityAuthenticated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	if event.UserID == "" {
		logger.Ctx(ctx).Warn().Str("type", string(event.Type)).Msg("Identity event without user id, skipped")
		return nil
	}

	principal := &auth.Principal{UserID: event.UserID, Email: event.Email}
	if _, err := s.ClaimGuestOrders(ctx, principal); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).
			Str("user_id", event.UserID).
			Str("type", string(event.Type)).
			Msg("Guest order linking skipped after authentication")
	}
	return nil
}
