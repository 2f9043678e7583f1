package coupon

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
)

const (
	ReasonNotFound   = "not_found"
	ReasonNotStarted = "not_started"
	ReasonExpired    = "expired"
	ReasonUsageLimit = "usage_limit"
)

type Result struct {
	Valid    bool    `json:"valid"`
	Reason   string  `json:"reason,omitempty"`
	Discount float64 `json:"discount,omitempty"`
	CouponID uint    `json:"couponId,omitempty"`
}

type Validator struct {
	DB *gorm.DB
}

// Validate has no side effects: used_count moves only when a payment
// for an order carrying the coupon succeeds, so abandoned checkouts
// never burn a redemption.
func (v *Validator) Validate(ctx context.Context, code string, subtotal float64) (*Result, error) {
	db := v.DB.WithContext(ctx)

	var coupon models.Coupon
	if err := db.Where("code = ? AND active = ?", code, true).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Result{Valid: false, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	now := time.Now()
	if coupon.StartsAt != nil && coupon.StartsAt.After(now) {
		return &Result{Valid: false, Reason: ReasonNotStarted}, nil
	}
	if coupon.EndsAt != nil && coupon.EndsAt.Before(now) {
		return &Result{Valid: false, Reason: ReasonExpired}, nil
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return &Result{Valid: false, Reason: ReasonUsageLimit}, nil
	}

	discount := coupon.Value
	if coupon.Type == models.CouponPercent {
		discount = coupon.Value / 100 * subtotal
	}
	discount = math.Round(discount*100) / 100

	return &Result{Valid: true, Discount: discount, CouponID: coupon.ID}, nil
}
