package port

import "context"

// CheckoutRequest 请求支付方为订单创建托管收银台会话
type CheckoutRequest struct {
	OrderID       string
	Description   string
	Amount        int64 // 整数货币单位
	Currency      string
	CustomerEmail string
}

type CheckoutSession struct {
	ID      string
	URL     string
	OrderID string // metadata.order_id
	Paid    bool
}

const (
	EventCheckoutCompleted = "checkout.session.completed"
	// 延迟到账的支付方式在会话完成后才会发出这个事件
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// PaymentEvent 是验签通过后的支付通知
type PaymentEvent struct {
	ID        string
	Type      string
	SessionID string
	OrderID   string // 会话 metadata 中的 order_id，可能为空
	Paid      bool
}

// PaymentGateway 是支付服务的出站端口。
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// ParseWebhook 验证签名并解析事件；验签失败返回 domain.ErrInvalidSignature
	ParseWebhook(payload []byte, signature string) (*PaymentEvent, error)
}
