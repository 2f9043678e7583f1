package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nutrishop/storefront/internal/logging"
	"github.com/nutrishop/storefront/internal/mykafka"
	"github.com/nutrishop/storefront/internal/service/payments"
)

type PaymentHandler struct {
	Webhook  *payments.Service
	Producer mykafka.Publisher
}

// HandleWebhook always answers 200. Providers retry on 5xx; an
// unknown or duplicate notification must be acknowledged, not turned
// into a failure loop.
func (h *PaymentHandler) HandleWebhook(c echo.Context) error {
	var n payments.Notification
	if err := c.Bind(&n); err != nil {
		return c.JSON(http.StatusOK, echo.Map{"ok": false})
	}

	if err := h.Webhook.HandleWebhook(c.Request().Context(), n); err != nil {
		log := logging.FromContext(c.Request().Context())
		switch {
		case errors.Is(err, payments.ErrPaymentNotFound):
			log.Warn("payment webhook: payment not found", "provider_ref", n.ProviderRef, "payment_id", n.PaymentID)
		case errors.Is(err, payments.ErrOrderNotPending):
			log.Warn("payment webhook: refused settlement", "error", err.Error())
		default:
			log.Error("payment webhook failed", "error", err.Error())
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": false})
	}

	h.publish(c, map[string]interface{}{
		"type":      "payment_webhook_processed",
		"orderID":   n.OrderID,
		"paymentID": n.PaymentID,
		"status":    n.Status,
	})

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *PaymentHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
