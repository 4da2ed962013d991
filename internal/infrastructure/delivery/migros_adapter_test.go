package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/webhook"
)

const migrosOrderPayload = `{
	"eventType": "ORDER_CREATED",
	"storeCode": "store-301",
	"orderDetail": {
		"orderId": "mg-70821",
		"orderNo": "MG-1190",
		"status": "NEW_ORDER",
		"customerName": "Zeynep Arslan",
		"customerPhone": "+905550014477",
		"addressDetail": "Moda Caddesi 45/2, Kadıköy, İstanbul",
		"note": "kapıda bekleyin",
		"items": [
			{
				"sku": "SKU-301",
				"name": "Tavuk Dürüm",
				"quantity": 2,
				"unitPrice": 85.5,
				"total": 171.0,
				"subItems": [
					{"sku": "SKU-301-A", "name": "Acı Sos", "price": 0.0}
				]
			}
		],
		"subTotal": 171.0,
		"deliveryFee": 9.9,
		"discount": 10.0,
		"grandTotal": 170.9,
		"paymentType": "CREDIT_CARD",
		"orderDate": "2024-06-02T12:45:00Z"
	}
}`

func newBoundMigrosAdapter(t *testing.T, baseURL string) *MigrosAdapter {
	t.Helper()

	tenantID := uuid.New()
	repo := new(MockCredentialRepository)
	repo.On("Find", mock.Anything, tenantID, integration.PlatformCodeMigros).
		Return(migrosTestCredentials(tenantID), nil)

	adapter := NewMigrosAdapter(MigrosConfig{BaseURL: baseURL}, testDependencies(repo))
	require.NoError(t, adapter.SetTenantContext(context.Background(), tenantID))
	return adapter
}

// migrosTestServer serves /oauth/token and hands everything else to api
func migrosTestServer(t *testing.T, grants *atomic.Int32, api http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "mg-client", r.FormValue("client_id"))
			assert.Equal(t, "mg-secret", r.FormValue("client_secret"))
			grants.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "mg-tok", "expires_in": 3600}`))
			return
		}
		if api != nil {
			api(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMigrosAdapter_ParseWebhookPayload(t *testing.T) {
	adapter := newBoundMigrosAdapter(t, "http://unused")

	order, err := adapter.ParseWebhookPayload([]byte(migrosOrderPayload))
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, "mg-70821", order.PlatformOrderID)
	assert.Equal(t, "MG-1190", order.PlatformOrderNumber)
	assert.Equal(t, integration.OrderStatusReceived, order.Status)
	assert.Equal(t, "NEW_ORDER", order.RawStatus)
	assert.Equal(t, "Zeynep Arslan", order.CustomerName)
	assert.True(t, order.IsPrepaid, "all platform orders are collected online")
	assert.True(t, order.Total.Equal(decimalFromString(t, "170.9")), "total was %s", order.Total)
	assert.True(t, order.Subtotal.Equal(decimalFromString(t, "171")))

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "SKU-301", item.PlatformProductID)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.UnitPrice.Equal(decimalFromString(t, "85.5")))
	require.Len(t, item.Modifiers, 1)
	assert.Equal(t, "SKU-301-A", item.Modifiers[0].PlatformModifierID)
}

func TestMigrosAdapter_ParseWebhookPayload_AcknowledgedEvents(t *testing.T) {
	adapter := newBoundMigrosAdapter(t, "http://unused")

	for _, event := range []string{"PING", "STORE_STATUS_CHANGED"} {
		order, err := adapter.ParseWebhookPayload([]byte(`{"eventType": "` + event + `"}`))
		assert.NoError(t, err, event)
		assert.Nil(t, order, event)
	}
}

func TestMigrosAdapter_ParseWebhookPayload_Malformed(t *testing.T) {
	adapter := newBoundMigrosAdapter(t, "http://unused")

	cases := map[string]string{
		"not json":            `{"eventType"`,
		"event without order": `{"eventType": "ORDER_CREATED"}`,
		"missing order id":    `{"eventType": "ORDER_CREATED", "orderDetail": {"orderNo": "MG-1"}}`,
	}
	for name, payload := range cases {
		_, err := adapter.ParseWebhookPayload([]byte(payload))
		assert.ErrorIs(t, err, integration.ErrInvalidWebhookPayload, name)
	}
}

func TestMigrosAdapter_StatusMaps(t *testing.T) {
	assert.Equal(t, integration.OrderStatusReceived, mapMigrosStatus("NEW_ORDER"))
	assert.Equal(t, integration.OrderStatusAccepted, mapMigrosStatus("APPROVED"))
	assert.Equal(t, integration.OrderStatusPreparing, mapMigrosStatus("PICKING"))
	assert.Equal(t, integration.OrderStatusPickedUp, mapMigrosStatus("SHIPPED"))
	assert.Equal(t, integration.OrderStatusReceived, mapMigrosStatus("UNKNOWN"))

	raw, ok := mapToMigrosStatus(integration.OrderStatusPickedUp)
	assert.True(t, ok)
	assert.Equal(t, "SHIPPED", raw)

	_, ok = mapToMigrosStatus(integration.OrderStatusReceived)
	assert.False(t, ok)
}

func TestMigrosAdapter_VerifyWebhook(t *testing.T) {
	adapter := newBoundMigrosAdapter(t, "http://unused")

	body := []byte(migrosOrderPayload)
	scheme := webhook.SchemeFor(integration.PlatformCodeMigros)
	signature := webhook.Sign(scheme, "mg-webhook-secret", body)

	valid := &integration.WebhookRequest{
		Body:    body,
		Headers: map[string]string{scheme.Header: signature},
	}
	assert.True(t, adapter.VerifyWebhook(valid))

	tampered := &integration.WebhookRequest{
		Body:    append([]byte(nil), append(body, '!')...),
		Headers: map[string]string{scheme.Header: signature},
	}
	assert.False(t, adapter.VerifyWebhook(tampered))
}

func TestMigrosAdapter_AcceptOrder_SendsStoreHeaders(t *testing.T) {
	var grants atomic.Int32
	var gotAuth, gotStore string
	server := migrosTestServer(t, &grants, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotStore = r.Header.Get("X-Store-Code")
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	adapter := newBoundMigrosAdapter(t, server.URL)

	result, err := adapter.AcceptOrder(context.Background(), "mg-70821", 30)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Bearer mg-tok", gotAuth)
	assert.Equal(t, "store-301", gotStore)
	assert.Equal(t, int32(1), grants.Load())
}

func TestMigrosAdapter_RejectOrder_RequiresReason(t *testing.T) {
	adapter := newBoundMigrosAdapter(t, "http://unused")

	// the platform endpoint takes no reason, but local auditing still does
	_, err := adapter.RejectOrder(context.Background(), "mg-70821", "")
	assert.ErrorIs(t, err, integration.ErrRejectReasonRequired)
}

func TestMigrosAdapter_RejectOrder_DoesNotSendReason(t *testing.T) {
	var grants atomic.Int32
	var gotBody []byte
	server := migrosTestServer(t, &grants, func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = buf[:n]
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	adapter := newBoundMigrosAdapter(t, server.URL)

	result, err := adapter.RejectOrder(context.Background(), "mg-70821", "out of stock")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, gotBody)
}

func TestMigrosAdapter_UpdateOrderStatus_SkipsUnpushable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := newBoundMigrosAdapter(t, server.URL)

	result, err := adapter.UpdateOrderStatus(context.Background(), "mg-70821", integration.OrderStatusRejected)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(0), calls.Load(), "unpushable status must not reach the platform")
}
