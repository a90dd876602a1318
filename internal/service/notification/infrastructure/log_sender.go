package infrastructure

import (
	"context"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/notification/application"
)

// LogSender 把通知写入结构化日志，由日志管道转交邮件服务
type LogSender struct{}

var _ application.Sender = LogSender{}

func (LogSender) Send(ctx context.Context, msg application.Message) error {
	logger.Ctx(ctx).Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("Sending customer notification")
	return nil
}
