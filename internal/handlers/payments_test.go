package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/service/payments"
	"github.com/nutrishop/storefront/internal/testutil"
)

func TestWebhookEndpointAcknowledgesUnknownPayment(t *testing.T) {
	e := echo.New()
	db := testutil.NewDB(t)
	h := &PaymentHandler{Webhook: &payments.Service{DB: db}, Producer: &testutil.StubPublisher{}}

	req, rec := jsonRequest(http.MethodPost, "/payments/webhook",
		`{"payment_id":999,"status":"success"}`)
	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec)))

	// Providers retry on 5xx; unknown notifications are acked with ok:false.
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body["ok"])
}

func TestWebhookEndpointSettlesPayment(t *testing.T) {
	e := echo.New()
	oh, db, _ := newOrderHandler(t)
	pub := &testutil.StubPublisher{}
	h := &PaymentHandler{Webhook: &payments.Service{DB: db}, Producer: pub}

	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	c, rec := orderContext(e, http.MethodPost, "/orders/checkout",
		fmt.Sprintf(`{"items":[{"variant_id":%d,"quantity":2}]}`, variantID),
		userID, models.RoleCustomer)
	require.NoError(t, oh.CheckoutOrder(c))

	var env struct {
		Data struct {
			Order     models.Order `json:"order"`
			PaymentID uint         `json:"paymentId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	req, rec2 := jsonRequest(http.MethodPost, "/payments/webhook",
		fmt.Sprintf(`{"payment_id":%d,"order_id":%d,"status":"success"}`,
			env.Data.PaymentID, env.Data.Order.ID))
	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec2)))

	require.Equal(t, http.StatusOK, rec2.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body))
	require.True(t, body["ok"])

	var order models.Order
	require.NoError(t, db.First(&order, env.Data.Order.ID).Error)
	require.Equal(t, models.OrderPaid, order.Status)

	require.Len(t, pub.Events, 1)
	require.Equal(t, "order_events", pub.Events[0].Topic)
}
