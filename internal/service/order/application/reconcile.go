package application

import (
	"context"
	"errors"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/pkg/metrics"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandlePaymentWebhook 处理支付方的异步通知，发送方至少投递一次，处理必须幂等。
// 只有验签失败和存储故障会返回错误；找不到订单、重复投递、其他事件类型都返回成功。
func (s *OrderApplicationService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := s.tracer.Start(ctx, "app.HandlePaymentWebhook", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	// 1. 验签，失败时不做任何状态变更
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.metrics.WebhooksRejected.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Webhook signature rejected")
		logger.Ctx(ctx).Warn().Err(err).Msg("Rejected payment webhook")
		return err
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.Type),
	)

	paymentCompleted := (event.Type == port.EventCheckoutCompleted || event.Type == port.EventAsyncPaymentSucceeded) && event.Paid
	if !paymentCompleted {
		s.metrics.PaymentsReconciled.WithLabelValues(metrics.SourceWebhook, metrics.ResultIgnoredType).Inc()
		logger.Ctx(ctx).Info().Str("event_id", event.ID).Str("event_type", event.Type).Bool("paid", event.Paid).
			Msg("Payment webhook acknowledged without action")
		return nil
	}

	// 2. Redis 快速去重；Redis 不可用时放行，由存储的条件更新兜底
	held := false
	if s.dedup != nil && event.ID != "" {
		claimCtx, cancel := s.withTimeout(ctx)
		claimed, err := s.dedup.Claim(claimCtx, event.ID, s.opts.DedupProcessingTTL)
		cancel()
		switch {
		case err != nil:
			logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("Webhook dedup unavailable, continuing")
		case !claimed:
			s.metrics.PaymentsReconciled.WithLabelValues(metrics.SourceWebhook, metrics.ResultDuplicate).Inc()
			span.AddEvent("Duplicate delivery skipped.")
			return nil
		default:
			held = true
		}
	}

	// 3. 条件更新为已支付
	if _, err := s.reconcilePayment(ctx, metrics.SourceWebhook, event.OrderID, event.SessionID); err != nil {
		if held {
			// 释放占位，让发送方重试时可以再次处理
			releaseCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
			if relErr := s.dedup.Release(releaseCtx, event.ID); relErr != nil {
				logger.Ctx(ctx).Warn().Err(relErr).Str("event_id", event.ID).Msg("Failed to release webhook dedup claim")
			}
			cancel()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Payment reconciliation failed")
		return err
	}

	// 4. 成功后才写入长期去重记录
	if held {
		completeCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		if err := s.dedup.Complete(completeCtx, event.ID, s.opts.DedupTTL); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("Failed to record webhook dedup completion")
		}
		cancel()
	}
	return nil
}

// ConfirmCheckout 是浏览器从收银台返回时的兜底确认：向支付方查询会话，
// 只有支付方确认已付款时才走与 webhook 相同的条件更新，绝不降级。
// 订单尚不可见时返回 Found=false 而不是错误。
func (s *OrderApplicationService) ConfirmCheckout(ctx context.Context, sessionID string) (*ConfirmCheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmCheckout")
	defer span.End()

	if sessionID == "" {
		return nil, &domain.ValidationError{Field: "session_id", Reason: "is required"}
	}
	span.SetAttributes(attribute.String("checkout.session_id", sessionID))

	callCtx, cancel := s.withTimeout(ctx)
	session, err := s.gateway.GetCheckoutSession(callCtx, sessionID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return &ConfirmCheckoutResult{Found: false}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch checkout session")
		logger.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Str("op", "get_checkout_session").Msg("Checkout confirmation failed")
		return nil, err
	}

	if !session.Paid {
		s.metrics.PaymentsReconciled.WithLabelValues(metrics.SourceRedirect, metrics.ResultNotPaid).Inc()
		o, err := s.resolveOrder(ctx, session.OrderID, session.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return &ConfirmCheckoutResult{Found: false}, nil
		}
		if err != nil {
			return nil, err
		}
		return &ConfirmCheckoutResult{Found: true, OrderID: o.ID, Paid: o.IsPaid()}, nil
	}

	o, err := s.reconcilePayment(ctx, metrics.SourceRedirect, session.OrderID, session.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Payment reconciliation failed")
		return nil, err
	}
	if o == nil {
		return &ConfirmCheckoutResult{Found: false}, nil
	}
	return &ConfirmCheckoutResult{Found: true, OrderID: o.ID, Paid: true}, nil
}

// resolveOrder 先按 metadata 中的订单 id 查找，再按会话 id 查找
func (s *OrderApplicationService) resolveOrder(ctx context.Context, orderID, sessionID string) (*domain.Order, error) {
	if orderID != "" {
		callCtx, cancel := s.withTimeout(ctx)
		o, err := s.orderRepo.FindByID(callCtx, orderID)
		cancel()
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return o, err
		}
	}
	if sessionID == "" {
		return nil, domain.ErrNotFound
	}
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.orderRepo.FindBySessionRef(callCtx, sessionID)
}

// reconcilePayment 是 webhook 与返回页共用的幂等更新。
// 找不到订单时返回 nil, nil：记录异常但不让发送方无限重试。
func (s *OrderApplicationService) reconcilePayment(ctx context.Context, source, orderID, sessionID string) (*domain.Order, error) {
	o, err := s.resolveOrder(ctx, orderID, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.PaymentsReconciled.WithLabelValues(source, metrics.ResultUnmatched).Inc()
		logger.Ctx(ctx).Warn().
			Str("source", source).
			Str("order_id", orderID).
			Str("session_id", sessionID).
			Msg("Payment confirmation without matching order")
		return nil, nil
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Str("session_id", sessionID).Str("op", "resolve_order").
			Msg("Failed to look up order for payment")
		return nil, err
	}

	now := s.opts.Now()
	callCtx, cancel := s.withTimeout(ctx)
	flipped, err := s.orderRepo.MarkPaid(callCtx, o.ID, sessionID, now)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.PaymentsReconciled.WithLabelValues(source, metrics.ResultUnmatched).Inc()
		return nil, nil
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Str("session_id", sessionID).Str("op", "mark_paid").
			Msg("Failed to mark order paid")
		return nil, err
	}

	if !flipped {
		s.metrics.PaymentsReconciled.WithLabelValues(source, metrics.ResultAlreadyPaid).Inc()
		logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("source", source).Msg("Order already paid, nothing to do")
		return o, nil
	}

	o.PaymentStatus = domain.PaymentPaid
	o.PaidAt = &now
	if o.PaymentSessionRef == "" {
		o.PaymentSessionRef = sessionID
	}
	s.metrics.PaymentsReconciled.WithLabelValues(source, metrics.ResultPaid).Inc()
	logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("source", source).Msg("Order marked as paid")

	s.publish(ctx, domain.EventOrderPaid, o)
	return o, nil
}
