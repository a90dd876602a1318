package interfaces

import (
	"context"
	"encoding/json"

	"freshdrop/internal/pkg/mq"
	"freshdrop/internal/service/order/domain"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// IdentityEventHandler 由 *application.OrderApplicationService 实现
type IdentityEventHandler interface {
	HandleIdentityAuthenticated(ctx context.Context, event *domain.IdentityAuthenticated) error
}

// NewIdentityConsumer 监听身份服务的登录/注册事件，驱动访客订单关联。
func NewIdentityConsumer(reader mq.MessageReader, handler IdentityEventHandler) *mq.Consumer {
	return mq.NewConsumer("identity-linker", reader, func(ctx context.Context, msg kafka.Message) error {
		var event domain.IdentityAuthenticated
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return errors.Wrap(err, "decode identity event")
		}
		return handler.HandleIdentityAuthenticated(ctx, &event)
	})
}
