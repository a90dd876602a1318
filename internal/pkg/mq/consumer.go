package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"freshdrop/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// MessageReader 是 *kafka.Reader 的最小子集，便于测试替换
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageHandler 处理单条消息。返回的错误只记录日志，消息照常提交。
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consumer 是驱动适配器的通用消费循环：拉取 → 恢复追踪上下文 → 处理 → 提交。
type Consumer struct {
	name    string
	reader  MessageReader
	handle  MessageHandler
	stopped atomic.Bool

	// 拉取失败后的等待时间
	RetryBackoff time.Duration
}

func NewConsumer(name string, reader MessageReader, handle MessageHandler) *Consumer {
	return &Consumer{
		name:         name,
		reader:       reader,
		handle:       handle,
		RetryBackoff: time.Second,
	}
}

// Start 阻塞运行直到 ctx 结束或 Stop 被调用
func (c *Consumer) Start(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("Kafka consumer started")
	for {
		if c.stopped.Load() {
			return nil
		}
		// 使用 FetchMessage 而不是 ReadMessage，offset 在处理后手动提交
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || c.stopped.Load() || errors.Is(err, context.Canceled) {
				logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("Kafka consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("Could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.RetryBackoff):
			}
			continue
		}

		msgCtx := ExtractTraceContext(ctx, msg.Headers)
		if err := c.handle(msgCtx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).
				Str("consumer", c.name).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Str("key", string(msg.Key)).
				Msg("Failed to handle message, skipped")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("Failed to commit message")
		}
	}
}

// Stop 关闭 reader，阻塞中的 FetchMessage 随之返回
func (c *Consumer) Stop(ctx context.Context) error {
	c.stopped.Store(true)
	err := c.reader.Close()
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("Kafka consumer stopped")
	return err
}
