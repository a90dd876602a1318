package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Registry struct {
	OrdersCreated      prometheus.Counter
	CheckoutFailures   prometheus.Counter
	PaymentsReconciled *prometheus.CounterVec // labels: source, result
	WebhooksRejected   prometheus.Counter
	GuestOrdersLinked  prometheus.Counter
	StatusUpdates      *prometheus.CounterVec // labels: status
}

// New 创建订单服务指标并注册到 reg；reg 为 nil 时只创建不注册（测试用）
func New(reg prometheus.Registerer) *Registry {
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshdrop_orders_created_total",
		Help: "Orders persisted by the creation flow.",
	})
	checkoutFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshdrop_checkout_failures_total",
		Help: "Orders left unpaid because the checkout session could not be created.",
	})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freshdrop_payments_reconciled_total",
		Help: "Payment confirmations by source (webhook, redirect) and result.",
	}, []string{"source", "result"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshdrop_webhooks_rejected_total",
		Help: "Webhook deliveries rejected by signature verification.",
	})
	linked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshdrop_guest_orders_linked_total",
		Help: "Guest orders attached to an account.",
	})
	statusUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freshdrop_status_updates_total",
		Help: "Fulfillment status overwrites by target status.",
	}, []string{"status"})

	if reg != nil {
		reg.MustRegister(created, checkoutFailures, reconciled, rejected, linked, statusUpdates)
	}
	return &Registry{
		OrdersCreated:      created,
		CheckoutFailures:   checkoutFailures,
		PaymentsReconciled: reconciled,
		WebhooksRejected:   rejected,
		GuestOrdersLinked:  linked,
		StatusUpdates:      statusUpdates,
	}
}

const (
	SourceWebhook  = "webhook"
	SourceRedirect = "redirect"

	ResultPaid        = "paid"
	ResultAlreadyPaid = "already_paid"
	ResultUnmatched   = "unmatched"
	ResultNotPaid     = "not_paid"
	ResultDuplicate   = "duplicate"
	ResultIgnoredType = "ignored_type"
)
