package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/service/coupon"
)

var (
	ErrValidation       = errors.New("validation")
	ErrCustomerNotFound = errors.New("customer not found")
)

// InsufficientStockError names the variant that lost the race so the
// client can show which line item to fix.
type InsufficientStockError struct {
	VariantID uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %d", e.VariantID)
}

// InvalidCouponError aborts the whole checkout; a bad code fails
// closed instead of being silently dropped.
type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("invalid coupon %q: %s", e.Code, e.Reason)
}

type ItemRequest struct {
	VariantID uint `json:"variant_id"`
	Quantity  uint `json:"quantity"`
}

type Result struct {
	Order     *models.Order `json:"order"`
	PaymentID uint          `json:"paymentId"`
}

type Service struct {
	DB       *gorm.DB
	Provider string
}

var orderSeq uint64

// nextOrderNumber combines wall-clock millis with a process-wide
// sequence so concurrent checkouts inside one millisecond still get
// distinct numbers.
func nextOrderNumber() string {
	seq := atomic.AddUint64(&orderSeq, 1)
	return fmt.Sprintf("ORD-%d-%04d", time.Now().UnixMilli(), seq%10000)
}

// Checkout converts the requested items into a Pending order plus a
// Pending payment inside one transaction. Stock is reserved here,
// before payment confirmation; the webhook later settles or releases
// the reservation. Any failure rolls everything back.
func (s *Service) Checkout(ctx context.Context, userID uint, items []ItemRequest, couponCode string, shippingFee float64) (*Result, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	if shippingFee < 0 {
		return nil, fmt.Errorf("%w: shipping_fee must be >= 0", ErrValidation)
	}

	var result Result

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.Where("user_id = ?", userID).First(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCustomerNotFound
			}
			return err
		}

		var subtotal float64
		orderItems := make([]models.OrderItem, 0, len(items))

		for _, it := range items {
			if it.Quantity < 1 {
				return fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
			}

			// Check-and-reserve in one guarded UPDATE so two
			// concurrent checkouts serialize on the stock row and the
			// loser observes the reduced availability.
			res := tx.Model(&models.Stock{}).
				Where("variant_id = ? AND quantity - reserved >= ?", it.VariantID, it.Quantity).
				Update("reserved", gorm.Expr("reserved + ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &InsufficientStockError{VariantID: it.VariantID}
			}

			// Unit price always comes from the catalog, never from the
			// client request.
			var price models.Price
			if err := tx.Where("variant_id = ?", it.VariantID).First(&price).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: no price for variant %d", ErrValidation, it.VariantID)
				}
				return err
			}
			unit := price.BasePrice
			if price.SalePrice != nil {
				unit = *price.SalePrice
			}

			subtotal += unit * float64(it.Quantity)
			orderItems = append(orderItems, models.OrderItem{
				VariantID: it.VariantID,
				Quantity:  it.Quantity,
				Price:     unit,
			})
		}

		var discount float64
		var couponID *uint
		if couponCode != "" {
			validator := coupon.Validator{DB: tx}
			cres, err := validator.Validate(ctx, couponCode, subtotal)
			if err != nil {
				return err
			}
			if !cres.Valid {
				return &InvalidCouponError{Code: couponCode, Reason: cres.Reason}
			}
			discount = cres.Discount
			couponID = &cres.CouponID
		}

		total := subtotal - discount + shippingFee
		if total < 0 {
			total = 0
		}

		order := models.Order{
			CustomerID:  customer.ID,
			OrderNumber: nextOrderNumber(),
			Status:      models.OrderPending,
			TotalAmount: total,
			CouponID:    couponID,
			CouponCode:  couponCode,
			CreatedAt:   time.Now().Unix(),
			Items:       orderItems,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		payment := models.Payment{
			OrderID:  order.ID,
			Provider: s.Provider,
			Amount:   total,
			Status:   models.PaymentPending,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		// Successful checkout empties the persisted cart.
		var cart models.Cart
		if err := tx.Where("user_id = ?", userID).First(&cart).Error; err == nil {
			if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		result = Result{Order: &order, PaymentID: payment.ID}
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return &result, nil
}
