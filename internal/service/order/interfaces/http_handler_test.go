package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"freshdrop/internal/pkg/auth"
	"freshdrop/internal/service/order/application"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// stubService 记录调用参数并返回预设结果
type stubService struct {
	err error

	principal *auth.Principal
	createReq *application.CreateOrderRequest
	payload   []byte
	signature string
	sessionID string
	orderID   string
	status    string
	limit     int
	offset    int
}

func (s *stubService) CreateOrder(_ context.Context, p *auth.Principal, req *application.CreateOrderRequest) (*application.CreateOrderResponse, error) {
	s.principal, s.createReq = p, req
	if s.err != nil {
		return nil, s.err
	}
	return &application.CreateOrderResponse{OrderID: "o-1", CheckoutURL: "https://checkout.example/cs_1", EstimatedTotalPrice: 300, Currency: "sek"}, nil
}

func (s *stubService) GetOrder(_ context.Context, p *auth.Principal, id string) (*application.OrderView, error) {
	s.principal, s.orderID = p, id
	if s.err != nil {
		return nil, s.err
	}
	return &application.OrderView{ID: id, Status: "RECEIVED", PaymentStatus: "unpaid"}, nil
}

func (s *stubService) ListMyOrders(_ context.Context, p *auth.Principal) ([]*application.OrderView, error) {
	s.principal = p
	if s.err != nil {
		return nil, s.err
	}
	return []*application.OrderView{{ID: "o-1"}}, nil
}

func (s *stubService) HandlePaymentWebhook(_ context.Context, payload []byte, sig string) error {
	s.payload, s.signature = payload, sig
	return s.err
}

func (s *stubService) ConfirmCheckout(_ context.Context, sessionID string) (*application.ConfirmCheckoutResult, error) {
	s.sessionID = sessionID
	if s.err != nil {
		return nil, s.err
	}
	return &application.ConfirmCheckoutResult{Found: true, OrderID: "o-1", Paid: true}, nil
}

func (s *stubService) ClaimGuestOrders(_ context.Context, p *auth.Principal) (int64, error) {
	s.principal = p
	return 2, s.err
}

func (s *stubService) ListAllOrders(_ context.Context, p *auth.Principal, limit, offset int) ([]*application.OrderView, error) {
	s.principal, s.limit, s.offset = p, limit, offset
	return nil, s.err
}

func (s *stubService) UpdateFulfillmentStatus(_ context.Context, p *auth.Principal, id, status string) (*application.OrderView, error) {
	s.principal, s.orderID, s.status = p, id, status
	if s.err != nil {
		return nil, s.err
	}
	return &application.OrderView{ID: id, Status: status}, nil
}

func newTestServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewOrderHandler(svc, testSecret).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateOrderGuest(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	resp, err := http.Post(srv.URL+"/api/orders/create", "application/json",
		strings.NewReader(`{"email":"a@b.se","estimated_weight_kg":5}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "o-1", body["order_id"])
	assert.Equal(t, "https://checkout.example/cs_1", body["checkout_url"])
	assert.Nil(t, svc.principal)
	assert.Equal(t, "a@b.se", svc.createReq.Email)
	assert.Equal(t, application.WeightInput("5"), svc.createReq.EstimatedWeightKg)
}

func TestCreateOrderWithBearerToken(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/orders/create", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+testutil.GenerateJWTHS256(t, testSecret, "user-1", "a@b.se"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.principal)
	assert.Equal(t, "user-1", svc.principal.UserID)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+testutil.GenerateJWTHS256(t, "other-secret", "user-1", ""))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", decodeBody(t, resp)["message"])
}

func TestCreateOrderBadJSON(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Post(srv.URL+"/api/orders/create", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&domain.ValidationError{Field: "phone", Reason: "is required"}, http.StatusBadRequest},
		{fmt.Errorf("%w: %q", domain.ErrInvalidStatus, "x"), http.StatusBadRequest},
		{domain.ErrMissingEmail, http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{&domain.PersistenceError{Op: "find", Err: errors.New("db password leaked")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv := newTestServer(t, &stubService{err: tc.err})
		resp, err := http.Get(srv.URL + "/api/orders/o-1")
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
		body := decodeBody(t, resp)
		if tc.status == http.StatusInternalServerError {
			assert.Equal(t, "Internal server error", body["message"])
		}
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	srv := newTestServer(t, &stubService{err: &domain.ValidationError{Field: "phone", Reason: "is required"}})

	resp, err := http.Post(srv.URL+"/api/orders/create", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "phone", decodeBody(t, resp)["field"])
}

func TestGetOrderPassesPathID(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/orders/abc-123")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc-123", decodeBody(t, resp)["id"])
	assert.Equal(t, "abc-123", svc.orderID)
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)
	payload := `{"id":"evt_1","type":"checkout.session.completed"}`

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/stripe/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["received"])
	assert.Equal(t, payload, string(svc.payload))
	assert.Equal(t, "t=1,v1=abc", svc.signature)
}

func TestWebhookInvalidSignature(t *testing.T) {
	srv := newTestServer(t, &stubService{err: domain.ErrInvalidSignature})

	resp, err := http.Post(srv.URL+"/api/stripe/webhook", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookStoreFailureAsksForRetry(t *testing.T) {
	srv := newTestServer(t, &stubService{err: &domain.PersistenceError{Op: "mark_paid", Err: errors.New("down")}})

	resp, err := http.Post(srv.URL+"/api/stripe/webhook", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckoutSuccessAndCancel(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/checkout/success?session_id=cs_1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["paid"])
	assert.Equal(t, "cs_1", svc.sessionID)

	resp, err = http.Get(srv.URL + "/api/checkout/cancel")
	require.NoError(t, err)
	assert.Equal(t, true, decodeBody(t, resp)["cancelled"])
}

func TestClaimOrders(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/claim-orders", nil)
	req.Header.Set("Authorization", "Bearer "+testutil.GenerateJWTHS256(t, testSecret, "user-1", "a@b.se"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["linked"])
	assert.Equal(t, "a@b.se", svc.principal.Email)
}

func TestListAllOrdersPaging(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/admin/orders?limit=20&offset=40")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 20, svc.limit)
	assert.Equal(t, 40, svc.offset)
}

func TestUpdateStatusRedirectsForm(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)
	client := &http.Client{CheckRedirect: noRedirect}

	form := url.Values{"status": {"WASHING"}}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/orders/o-1/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+testutil.GenerateJWTHS256(t, testSecret, "admin-1", ""))
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
	assert.Equal(t, "o-1", svc.orderID)
	assert.Equal(t, "WASHING", svc.status)
}

func TestUpdateStatusJSONAck(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	form := url.Values{"status": {"DELIVERED"}}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/orders/o-1/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["success"])
}

func TestUpdateStatusForbidden(t *testing.T) {
	srv := newTestServer(t, &stubService{err: domain.ErrForbidden})

	form := url.Values{"status": {"DELIVERED"}}
	resp, err := http.PostForm(srv.URL+"/api/admin/orders/o-1/status", form)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}
