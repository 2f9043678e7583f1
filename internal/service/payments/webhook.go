package payments

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
)

var (
	// ErrPaymentNotFound maps to {ok:false}: unknown notifications are
	// acknowledged, never turned into 5xx the provider would retry.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrOrderNotPending is returned when a success notification
	// arrives for an order no longer waiting for payment (for example
	// an admin canceled it); the stock mutation is refused.
	ErrOrderNotPending = errors.New("order not pending")
)

type Notification struct {
	ProviderRef string `json:"provider_ref"`
	PaymentID   uint   `json:"payment_id"`
	OrderID     uint   `json:"order_id"`
	Status      string `json:"status"`
}

type Service struct {
	DB *gorm.DB
}

// HandleWebhook finalizes a payment notification. Replays of an
// already successful payment are no-ops: the stock settlement and the
// coupon counter move exactly once per payment.
func (s *Service) HandleWebhook(ctx context.Context, n Notification) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := findPayment(tx, n)
		if err != nil {
			return err
		}

		if payment.Status == models.PaymentSuccess {
			return nil
		}

		if n.Status == "success" {
			return s.finalizeSuccess(tx, payment)
		}
		return s.finalizeFailure(tx, payment)
	})
}

func findPayment(tx *gorm.DB, n Notification) (*models.Payment, error) {
	var payment models.Payment

	if n.ProviderRef != "" {
		err := tx.Where("provider_ref = ?", n.ProviderRef).First(&payment).Error
		if err == nil {
			return &payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if n.PaymentID != 0 {
		err := tx.First(&payment, n.PaymentID).Error
		if err == nil {
			return &payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, ErrPaymentNotFound
}

func (s *Service) finalizeSuccess(tx *gorm.DB, payment *models.Payment) error {
	var order models.Order
	if err := tx.Preload("Items").First(&order, payment.OrderID).Error; err != nil {
		return err
	}
	if order.Status != models.OrderPending {
		return fmt.Errorf("%w: order %d is %s", ErrOrderNotPending, order.ID, order.Status)
	}

	// Guarded flip: under two simultaneous deliveries only one UPDATE
	// matches, so only one settles stock and the coupon counter.
	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Update("status", models.PaymentSuccess)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	// The order flip is guarded on Pending as well: an admin cancel can
	// commit between the read above and this write, releasing the
	// reservation. An unguarded write would overwrite Canceled and
	// subtract the stock twice. Zero rows refuses settlement and rolls
	// back the payment flip.
	res = tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderPending).
		Update("status", models.OrderPaid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d changed status concurrently", ErrOrderNotPending, order.ID)
	}

	// Convert each reservation into a permanent decrement.
	for _, it := range order.Items {
		err := tx.Model(&models.Stock{}).
			Where("variant_id = ?", it.VariantID).
			Updates(map[string]interface{}{
				"quantity": gorm.Expr("quantity - ?", it.Quantity),
				"reserved": gorm.Expr("reserved - ?", it.Quantity),
			}).Error
		if err != nil {
			return err
		}
	}

	if order.CouponID != nil {
		err := tx.Model(&models.Coupon{}).
			Where("id = ?", *order.CouponID).
			Update("used_count", gorm.Expr("used_count + 1")).Error
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) finalizeFailure(tx *gorm.DB, payment *models.Payment) error {
	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Update("status", models.PaymentFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	var order models.Order
	if err := tx.Preload("Items").First(&order, payment.OrderID).Error; err != nil {
		return err
	}

	// Guarded for the same reason as the success path: if a concurrent
	// cancel already released the reservation, releasing it again here
	// would drive reserved negative. Zero rows means the order left
	// Pending and its stock is already settled.
	res = tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderPending).
		Update("status", models.OrderCanceled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	// Return the reserved units to the available pool.
	for _, it := range order.Items {
		err := tx.Model(&models.Stock{}).
			Where("variant_id = ?", it.VariantID).
			Update("reserved", gorm.Expr("reserved - ?", it.Quantity)).Error
		if err != nil {
			return err
		}
	}

	return nil
}
