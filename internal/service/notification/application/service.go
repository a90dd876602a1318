package application

import (
	"context"
	"encoding/json"
	"time"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/domain"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sender 把通知交给投递通道，例如邮件服务
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type NotificationService struct {
	tracer trace.Tracer
	sender Sender
	loc    *time.Location
}

func NewNotificationService(tracer trace.Tracer, sender Sender, loc *time.Location) *NotificationService {
	return &NotificationService{tracer: tracer, sender: sender, loc: loc}
}

// HandleMessage 处理一条订单事件消息，ctx 已携带上游追踪上下文
func (s *NotificationService) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := s.tracer.Start(ctx, "notification-service.ProcessOrderEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		))
	defer span.End()

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Undecodable order event")
		return errors.Wrap(err, "decode order event")
	}
	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("event.type", string(event.Type)),
	)

	notification, ok := Render(event, s.loc)
	if !ok {
		span.AddEvent("No notification for event.")
		logger.Ctx(ctx).Debug().Str("order_id", event.OrderID).Str("type", string(event.Type)).Msg("Order event without notification")
		return nil
	}

	if err := s.sender.Send(ctx, notification); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send notification")
		return errors.Wrapf(err, "send notification for order %s", event.OrderID)
	}
	span.AddEvent("Notification sent successfully")
	return nil
}
