package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	mwauth "github.com/nutrishop/storefront/internal/middleware/auth"
	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/mykafka"
	"github.com/nutrishop/storefront/internal/service/checkout"
	"github.com/nutrishop/storefront/internal/service/orders"
	"github.com/nutrishop/storefront/internal/service/payments"
	"github.com/nutrishop/storefront/internal/transport/api"
	"github.com/nutrishop/storefront/internal/util"
)

type OrderHandler struct {
	DB       *gorm.DB
	Checkout *checkout.Service
	Orders   *orders.Service
	Provider payments.Provider
	Producer mykafka.Publisher
}

type checkoutRequest struct {
	Items       []checkout.ItemRequest `json:"items"`
	CouponCode  string                 `json:"coupon_code"`
	ShippingFee float64                `json:"shipping_fee"`
}

func (h *OrderHandler) CheckoutOrder(c echo.Context) error {
	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.Checkout.Checkout(c.Request().Context(), userID, req.Items, req.CouponCode, req.ShippingFee)
	if err != nil {
		var stockErr *checkout.InsufficientStockError
		var couponErr *checkout.InvalidCouponError
		switch {
		case errors.Is(err, checkout.ErrCustomerNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.As(err, &stockErr), errors.As(err, &couponErr), errors.Is(err, checkout.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	paymentURL, err := h.Provider.Initiate(result.Order, result.PaymentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]interface{}{
		"type":      "order_created",
		"orderID":   result.Order.ID,
		"userID":    userID,
		"total":     result.Order.TotalAmount,
		"paymentID": result.PaymentID,
	})

	return api.OK(c, "Checkout created", map[string]interface{}{
		"order":       result.Order,
		"paymentId":   result.PaymentID,
		"payment_url": paymentURL,
	})
}

func (h *OrderHandler) InitPayment(c echo.Context) error {
	var req struct {
		PaymentID uint `json:"payment_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scope, herr := h.customerScope(c)
	if herr != nil {
		return herr
	}

	var payment models.Payment
	if err := h.DB.First(&payment, req.PaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var order models.Order
	if err := h.DB.First(&order, payment.OrderID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Customers only re-initiate their own payments; a foreign payment
	// id looks like a missing one.
	if scope != 0 && order.CustomerID != scope {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}

	paymentURL, err := h.Provider.Initiate(&order, payment.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return api.OK(c, "Payment initiated", map[string]interface{}{"payment_url": paymentURL})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	scope, herr := h.customerScope(c)
	if herr != nil {
		return herr
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	list, err := h.Orders.List(c.Request().Context(), scope, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return api.OK(c, "Success", list)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	scope, herr := h.customerScope(c)
	if herr != nil {
		return herr
	}

	order, err := h.Orders.Get(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Customers only ever see their own orders; a foreign order id
	// looks like a missing one.
	if scope != 0 && order.CustomerID != scope {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	return api.OK(c, "Success", order)
}

func (h *OrderHandler) SearchOrders(c echo.Context) error {
	keyword := c.QueryParam("keyword")
	if keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword required")
	}

	scope, herr := h.customerScope(c)
	if herr != nil {
		return herr
	}

	list, err := h.Orders.Search(c.Request().Context(), keyword, scope)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return api.OK(c, "Success", list)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := h.Orders.Transition(c.Request().Context(), uint(id), req.Status)
	if err != nil {
		var transErr *orders.InvalidTransitionError
		switch {
		case errors.As(err, &transErr):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, orders.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, orders.ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	h.publish(c, map[string]interface{}{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"status":  order.Status,
	})

	return api.OK(c, "Order status updated", order)
}

func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Orders.Delete(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]interface{}{
		"type":    "order_deleted",
		"orderID": id,
	})

	return api.OK(c, "Order deleted", nil)
}

// customerScope resolves the caller to a customer id filter: 0 for
// admins (no filter), the caller's customer id otherwise.
func (h *OrderHandler) customerScope(c echo.Context) (uint, error) {
	if mwauth.Role(c) == models.RoleAdmin {
		return 0, nil
	}

	userID, err := mwauth.UserID(c)
	if err != nil {
		return 0, err
	}

	var customer models.Customer
	if err := h.DB.Where("user_id = ?", userID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, echo.NewHTTPError(http.StatusNotFound, "customer not found")
		}
		return 0, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return customer.ID, nil
}

func (h *OrderHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
