package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"freshdrop/internal/pkg/auth"
	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/service/order/application"
	"freshdrop/internal/service/order/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "order-service"

	maxBodyBytes = 1 << 20
	// Stripe 在这个头里携带时间戳和 HMAC 签名
	signatureHeader = "Stripe-Signature"
)

// OrderService 是 HTTP 层依赖的用例集合，由 *application.OrderApplicationService 实现
type OrderService interface {
	CreateOrder(ctx context.Context, principal *auth.Principal, req *application.CreateOrderRequest) (*application.CreateOrderResponse, error)
	GetOrder(ctx context.Context, principal *auth.Principal, orderID string) (*application.OrderView, error)
	ListMyOrders(ctx context.Context, principal *auth.Principal) ([]*application.OrderView, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error
	ConfirmCheckout(ctx context.Context, sessionID string) (*application.ConfirmCheckoutResult, error)
	ClaimGuestOrders(ctx context.Context, principal *auth.Principal) (int64, error)
	ListAllOrders(ctx context.Context, principal *auth.Principal, limit, offset int) ([]*application.OrderView, error)
	UpdateFulfillmentStatus(ctx context.Context, principal *auth.Principal, orderID, rawStatus string) (*application.OrderView, error)
}

var _ OrderService = (*application.OrderApplicationService)(nil)

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service   OrderService
	jwtSecret string
	tracer    trace.Tracer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service OrderService, jwtSecret string) *OrderHandler {
	return &OrderHandler{service: service, jwtSecret: jwtSecret, tracer: otel.Tracer(serviceName)}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	// 需要识别调用方的路由经过鉴权中间件；匿名请求照常放行，由用例决定是否拒绝
	mux.Handle("POST /api/orders/create", h.authed("CreateOrder", h.createOrder))
	mux.Handle("GET /api/orders", h.authed("ListMyOrders", h.listMyOrders))
	mux.Handle("GET /api/orders/{id}", h.authed("GetOrder", h.getOrder))
	mux.Handle("POST /api/auth/claim-orders", h.authed("ClaimGuestOrders", h.claimOrders))
	mux.Handle("GET /api/admin/orders", h.authed("ListAllOrders", h.listAllOrders))
	mux.Handle("POST /api/admin/orders/{id}/status", h.authed("UpdateFulfillmentStatus", h.updateStatus))

	// 支付方回调靠签名认证，不走 bearer token
	mux.Handle("POST /api/stripe/webhook", h.traced("PaymentWebhook", h.paymentWebhook))
	mux.Handle("GET /api/checkout/success", h.traced("CheckoutSuccess", h.checkoutSuccess))
	mux.Handle("GET /api/checkout/cancel", h.traced("CheckoutCancel", h.checkoutCancel))
}

// traced 从请求头恢复上游追踪上下文并开启服务端 span
func (h *OrderHandler) traced(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, "http."+name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.Pattern),
		)
		fn(w, r.WithContext(ctx))
	})
}

func (h *OrderHandler) authed(name string, fn http.HandlerFunc) http.Handler {
	return h.traced(name, auth.Middleware(h.jwtSecret, fn).ServeHTTP)
}

func principalFrom(r *http.Request) *auth.Principal {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	return p
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body"})
		return
	}

	resp, err := h.service.CreateOrder(r.Context(), principalFrom(r), &req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListMyOrders(r.Context(), principalFrom(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetOrder(r.Context(), principalFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// paymentWebhook 必须拿到原始请求体，签名是对原始字节计算的
func (h *OrderHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Unreadable body"})
		return
	}

	if err := h.service.HandlePaymentWebhook(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Webhook Error: invalid signature"})
			return
		}
		// 非 2xx 让支付方稍后重投
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *OrderHandler) checkoutSuccess(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ConfirmCheckout(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) checkoutCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": true,
		"message":   "Payment was cancelled. The order stays unpaid.",
	})
}

func (h *OrderHandler) claimOrders(w http.ResponseWriter, r *http.Request) {
	linked, err := h.service.ClaimGuestOrders(r.Context(), principalFrom(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "linked": linked})
}

func (h *OrderHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	orders, err := h.service.ListAllOrders(r.Context(), principalFrom(r), limit, offset)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// updateStatus 由管理后台的表单提交，成功后重定向回列表；JSON 客户端得到确认体
func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid form body"})
		return
	}

	view, err := h.service.UpdateFulfillmentStatus(r.Context(), principalFrom(r), r.PathValue("id"), r.PostFormValue("status"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": view})
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError 把领域错误映射为 HTTP 状态码；500 只返回通用信息
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrMissingEmail), errors.Is(err, domain.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	default:
		trace.SpanFromContext(ctx).RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}
