package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/testutil"
)

func newValidator(t *testing.T) (*Validator, *gorm.DB) {
	db := testutil.NewDB(t)
	return &Validator{DB: db}, db
}

func TestValidatePercentDiscount(t *testing.T) {
	v, db := newValidator(t)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "SAVE10", Type: models.CouponPercent, Value: 10, Active: true,
	}).Error)

	res, err := v.Validate(context.Background(), "SAVE10", 1000)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, 100.00, res.Discount)

	// Validation has no side effects, so repeating it is deterministic.
	again, err := v.Validate(context.Background(), "SAVE10", 1000)
	require.NoError(t, err)
	require.Equal(t, res.Discount, again.Discount)

	var stored models.Coupon
	require.NoError(t, db.Where("code = ?", "SAVE10").First(&stored).Error)
	require.Equal(t, 0, stored.UsedCount)
}

func TestValidateFixedDiscount(t *testing.T) {
	v, db := newValidator(t)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "MINUS50", Type: models.CouponFixed, Value: 50, Active: true,
	}).Error)

	res, err := v.Validate(context.Background(), "MINUS50", 1000)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, 50.00, res.Discount)
}

func TestValidateRoundsToTwoDecimals(t *testing.T) {
	v, db := newValidator(t)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "THIRD", Type: models.CouponPercent, Value: 33.33, Active: true,
	}).Error)

	res, err := v.Validate(context.Background(), "THIRD", 10)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, 3.33, res.Discount)
}

func TestValidateNotFound(t *testing.T) {
	v, _ := newValidator(t)

	res, err := v.Validate(context.Background(), "NOPE", 100)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, ReasonNotFound, res.Reason)
}

func TestValidateInactiveIsNotFound(t *testing.T) {
	v, db := newValidator(t)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "OFF", Type: models.CouponPercent, Value: 10, Active: false,
	}).Error)

	res, err := v.Validate(context.Background(), "OFF", 100)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, ReasonNotFound, res.Reason)
}

func TestValidateWindow(t *testing.T) {
	v, db := newValidator(t)

	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	require.NoError(t, db.Create(&models.Coupon{
		Code: "SOON", Type: models.CouponPercent, Value: 10, Active: true, StartsAt: &future,
	}).Error)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "GONE", Type: models.CouponPercent, Value: 10, Active: true, EndsAt: &past,
	}).Error)

	res, err := v.Validate(context.Background(), "SOON", 100)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, ReasonNotStarted, res.Reason)

	res, err = v.Validate(context.Background(), "GONE", 100)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, ReasonExpired, res.Reason)
}

func TestValidateUsageLimit(t *testing.T) {
	v, db := newValidator(t)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "LIMITED", Type: models.CouponPercent, Value: 10, Active: true,
		UsageLimit: 2, UsedCount: 2,
	}).Error)

	res, err := v.Validate(context.Background(), "LIMITED", 100)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, ReasonUsageLimit, res.Reason)
}

func TestValidateZeroLimitMeansUnlimited(t *testing.T) {
	v, db := newValidator(t)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "FOREVER", Type: models.CouponPercent, Value: 10, Active: true,
		UsageLimit: 0, UsedCount: 9999,
	}).Error)

	res, err := v.Validate(context.Background(), "FOREVER", 100)
	require.NoError(t, err)
	require.True(t, res.Valid)
}
