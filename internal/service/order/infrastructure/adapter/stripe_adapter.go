package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// 瑞典克朗按 öre 计价
const minorUnitsPerMajor = 100

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string // 支付完成或取消后浏览器返回的站点地址
	HTTPClient    *http.Client
	APIURL        string // 测试时指向本地服务器
}

// StripePaymentAdapter 实现了 port.PaymentGateway 接口。
type StripePaymentAdapter struct {
	sessions      session.Client
	webhookSecret string
	baseURL       string
}

func NewStripePaymentAdapter(cfg StripeConfig) *StripePaymentAdapter {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		LeveledLogger:     stripeLogger{},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripePaymentAdapter{
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (a *StripePaymentAdapter) CreateCheckoutSession(ctx context.Context, req port.CheckoutRequest) (*port.CheckoutSession, error) {
	if req.Amount <= 0 || req.Amount > math.MaxInt64/minorUnitsPerMajor {
		return nil, fmt.Errorf("%w: amount %d out of range", domain.ErrPaymentGateway, req.Amount)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(a.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(a.baseURL + "/checkout/cancel"),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount * minorUnitsPerMajor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": req.OrderID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)

	s, err := a.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentGateway, pkgerrors.Wrap(err, "create checkout session"))
	}
	return toCheckoutSession(s), nil
}

func (a *StripePaymentAdapter) GetCheckoutSession(ctx context.Context, sessionID string) (*port.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := a.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if pkgerrors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentGateway, pkgerrors.Wrap(err, "get checkout session"))
	}
	return toCheckoutSession(s), nil
}

// ParseWebhook 验签失败、时间戳超出容忍窗口或负载无法解析都视为签名无效
func (a *StripePaymentAdapter) ParseWebhook(payload []byte, signature string) (*port.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, a.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &port.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	switch out.Type {
	case port.EventCheckoutCompleted, port.EventAsyncPaymentSucceeded:
	default:
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidSignature, err)
	}
	out.SessionID = s.ID
	out.OrderID = orderIDOf(&s)
	// 异步到账成功事件本身就是付款确认
	out.Paid = out.Type == port.EventAsyncPaymentSucceeded || s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *port.CheckoutSession {
	return &port.CheckoutSession{
		ID:      s.ID,
		URL:     s.URL,
		OrderID: orderIDOf(s),
		Paid:    s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
}

func orderIDOf(s *stripe.CheckoutSession) string {
	if id := s.Metadata["order_id"]; id != "" {
		return id
	}
	return s.ClientReferenceID
}

// stripeLogger 把 SDK 日志转到 zerolog
type stripeLogger struct{}

func (stripeLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Str("component", "stripe").Msgf(format, v...)
}

func (stripeLogger) Infof(format string, v ...interface{}) {
	log.Debug().Str("component", "stripe").Msgf(format, v...)
}

func (stripeLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Str("component", "stripe").Msgf(format, v...)
}

func (stripeLogger) Errorf(format string, v ...interface{}) {
	log.Error().Str("component", "stripe").Msgf(format, v...)
}
