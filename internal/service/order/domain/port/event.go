package port

import (
	"context"
	"time"

	"freshdrop/internal/service/order/domain"
)

// EventPublisher 发布订单生命周期事件，发布失败不影响主流程
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

// WebhookDeduplicator 是重复投递的快速路径，最终的幂等仍由存储的条件更新保证。
type WebhookDeduplicator interface {
	// Claim 以较短的处理期占位，返回 false 表示该事件已被处理或正在处理。
	// 进程在处理期内退出时占位自动过期，重投可以再次处理。
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// Complete 在处理成功后把占位延长为去重记录
	Complete(ctx context.Context, eventID string, ttl time.Duration) error
	// Release 在处理失败时释放，让发送方重试时能再次处理
	Release(ctx context.Context, eventID string) error
}
