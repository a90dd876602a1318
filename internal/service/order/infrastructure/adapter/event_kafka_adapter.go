package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"freshdrop/internal/pkg/mq"
	"freshdrop/internal/service/order/domain"
)

// OrderEventKafkaAdapter 实现了 port.EventPublisher 接口，key 为订单 id 保证同一订单事件有序。
type OrderEventKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewOrderEventKafkaAdapter(writer mq.MessageWriter) *OrderEventKafkaAdapter {
	return &OrderEventKafkaAdapter{writer: writer}
}

func (a *OrderEventKafkaAdapter) Publish(ctx context.Context, event domain.OrderEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), eventBytes)
}
