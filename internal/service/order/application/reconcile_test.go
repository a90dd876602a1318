package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"freshdrop/internal/pkg/metrics"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPlacedOrder(t *testing.T, f *fixture) string {
	t.Helper()
	resp, err := f.svc.CreateOrder(context.Background(), nil, validRequest())
	require.NoError(t, err)
	return resp.OrderID
}

func completedEvent(eventID, orderID, sessionID string) *port.PaymentEvent {
	return &port.PaymentEvent{
		ID:        eventID,
		Type:      port.EventCheckoutCompleted,
		SessionID: sessionID,
		OrderID:   orderID,
		Paid:      true,
	}
}

func TestWebhookMarksOrderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)

	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))

	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	require.NotNil(t, o.PaidAt)
	assert.True(t, o.PaidAt.Equal(f.now))
	assert.Equal(t, domain.StatusReceived, o.FulfillmentStatus)
	assert.Equal(t, []domain.OrderEventType{domain.EventOrderPlaced, domain.EventOrderPaid}, f.publisher.types())
}

func TestWebhookInvalidSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)

	err := f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "forged")
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, o.PaymentStatus)
	assert.Empty(t, f.dedup.claimed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.WebhooksRejected))
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)

	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	first, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)

	// 同一事件重复投递走去重快路径
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	// 去重记录过期后重新投递走存储条件更新
	f.dedup.claimed = map[string]bool{}
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))

	again, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, again.PaymentStatus)
	assert.True(t, first.PaidAt.Equal(*again.PaidAt))
	assert.Equal(t, []domain.OrderEventType{domain.EventOrderPlaced, domain.EventOrderPaid}, f.publisher.types())

	reconciled := f.svc.metrics.PaymentsReconciled
	assert.Equal(t, 1.0, testutil.ToFloat64(reconciled.WithLabelValues(metrics.SourceWebhook, metrics.ResultPaid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reconciled.WithLabelValues(metrics.SourceWebhook, metrics.ResultDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reconciled.WithLabelValues(metrics.SourceWebhook, metrics.ResultAlreadyPaid)))
}

func TestWebhookUnmatchedOrderIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.gateway.webhookEvent = completedEvent("evt_1", "missing", "cs_missing")

	require.NoError(t, f.svc.HandlePaymentWebhook(context.Background(), []byte("{}"), "valid"))
	assert.Empty(t, f.publisher.types())
}

func TestWebhookMatchesBySessionWhenMetadataMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", "", "cs_"+id)

	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))

	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.IsPaid())
}

func TestWebhookIgnoresUnpaidAndOtherEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)

	unpaid := completedEvent("evt_1", id, "cs_"+id)
	unpaid.Paid = false
	f.gateway.webhookEvent = unpaid
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))

	f.gateway.webhookEvent = &port.PaymentEvent{ID: "evt_2", Type: "payment_intent.created"}
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))

	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, o.IsPaid())
	assert.Empty(t, f.dedup.claimed)
}

func TestWebhookAsyncPaymentSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = &port.PaymentEvent{
		ID:        "evt_1",
		Type:      port.EventAsyncPaymentSucceeded,
		SessionID: "cs_" + id,
		OrderID:   id,
		Paid:      true,
	}

	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.IsPaid())
}

func TestWebhookStoreFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)
	f.repo.failMarkPaid = true

	err := f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, []string{"evt_1"}, f.dedup.released)
	assert.Empty(t, f.dedup.completed)

	// 发送方重试时可以再次处理
	f.repo.failMarkPaid = false
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.IsPaid())
}

func TestWebhookDedupRecordWrittenOnlyAfterSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)

	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	assert.Equal(t, time.Minute, f.dedup.claimTTL["evt_1"])
	assert.Equal(t, 24*time.Hour, f.dedup.completed["evt_1"])
}

func TestWebhookRedeliveryAfterInterruptedProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)

	// 上一个实例占位后在更新订单前退出，占位仍在处理期内
	f.dedup.claimed["evt_1"] = true
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, o.IsPaid())
	assert.Empty(t, f.dedup.completed)

	// 处理期过后重投即可完成
	delete(f.dedup.claimed, "evt_1")
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	o, err = f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.IsPaid())
	assert.Contains(t, f.dedup.completed, "evt_1")
}

func TestWebhookDedupUnavailableFailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)
	f.dedup.claimErr = errors.New("redis down")

	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))
	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.IsPaid())
}

func TestConfirmCheckoutRequiresSessionID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmCheckout(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestConfirmCheckoutUnknownSession(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ConfirmCheckout(context.Background(), "cs_unknown")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestConfirmCheckoutNotYetPaid(t *testing.T) {
	f := newFixture(t)
	id := createPlacedOrder(t, f)

	res, err := f.svc.ConfirmCheckout(context.Background(), "cs_"+id)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, id, res.OrderID)
	assert.False(t, res.Paid)
}

func TestConfirmCheckoutPaidMarksOrderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createPlacedOrder(t, f)
	f.gateway.markPaid("cs_" + id)

	res, err := f.svc.ConfirmCheckout(ctx, "cs_"+id)
	require.NoError(t, err)
	assert.Equal(t, &ConfirmCheckoutResult{Found: true, OrderID: id, Paid: true}, res)

	// webhook 随后到达时不会重复处理
	f.gateway.webhookEvent = completedEvent("evt_1", id, "cs_"+id)
	require.NoError(t, f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "valid"))

	res, err = f.svc.ConfirmCheckout(ctx, "cs_"+id)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, []domain.OrderEventType{domain.EventOrderPlaced, domain.EventOrderPaid}, f.publisher.types())
}

func TestConfirmCheckoutBackfillsSessionAfterAttachFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.failAttach = true
	id := createPlacedOrder(t, f)
	f.repo.failAttach = false
	f.gateway.markPaid("cs_" + id)

	res, err := f.svc.ConfirmCheckout(ctx, "cs_"+id)
	require.NoError(t, err)
	assert.True(t, res.Paid)

	o, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cs_"+id, o.PaymentSessionRef)
	assert.True(t, o.IsPaid())
}
