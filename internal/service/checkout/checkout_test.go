package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
	"github.com/nutrishop/storefront/internal/testutil"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewDB(t)
	return &Service{DB: db, Provider: "mockpay"}, db
}

func TestCheckoutCreatesPendingOrderAndPayment(t *testing.T) {
	svc, db := newService(t)
	userID, customerID := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	res, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 2}}, "", 0)
	require.NoError(t, err)

	require.Equal(t, customerID, res.Order.CustomerID)
	require.Equal(t, models.OrderPending, res.Order.Status)
	require.Equal(t, 200.00, res.Order.TotalAmount)
	require.True(t, strings.HasPrefix(res.Order.OrderNumber, "ORD-"))
	require.Len(t, res.Order.Items, 1)
	require.Equal(t, 100.00, res.Order.Items[0].Price)

	var payment models.Payment
	require.NoError(t, db.First(&payment, res.PaymentID).Error)
	require.Equal(t, res.Order.ID, payment.OrderID)
	require.Equal(t, models.PaymentPending, payment.Status)
	require.Equal(t, 200.00, payment.Amount)

	stock := testutil.GetStock(t, db, variantID)
	require.Equal(t, 10, stock.Quantity)
	require.Equal(t, 2, stock.Reserved)
}

func TestCheckoutOrderNumbersAreUnique(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	first, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 1}}, "", 0)
	require.NoError(t, err)
	second, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 1}}, "", 0)
	require.NoError(t, err)

	require.NotEqual(t, first.Order.OrderNumber, second.Order.OrderNumber)
}

func TestCheckoutInsufficientStockLeavesStockUnchanged(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 3)

	_, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 5}}, "", 0)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, variantID, stockErr.VariantID)

	stock := testutil.GetStock(t, db, variantID)
	require.Equal(t, 3, stock.Quantity)
	require.Equal(t, 0, stock.Reserved)

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestCheckoutPartialFailureRollsBackEverything(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	okVariant := testutil.SeedCatalog(t, db, "whey", 100, 10)
	lowVariant := testutil.SeedCatalog(t, db, "creatine", 50, 1)

	_, err := svc.Checkout(context.Background(), userID, []ItemRequest{
		{VariantID: okVariant, Quantity: 2},
		{VariantID: lowVariant, Quantity: 5},
	}, "", 0)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, lowVariant, stockErr.VariantID)

	// The first item's reservation must not survive the abort.
	require.Equal(t, 0, testutil.GetStock(t, db, okVariant).Reserved)
	require.Equal(t, 0, testutil.GetStock(t, db, lowVariant).Reserved)

	var paymentCount int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	require.Zero(t, paymentCount)
}

func TestCheckoutSequentialOversellFailsCleanly(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 5)

	_, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 4}}, "", 0)
	require.NoError(t, err)

	// 1 available left: the next checkout must observe the reservation.
	_, err = svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 2}}, "", 0)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	stock := testutil.GetStock(t, db, variantID)
	require.Equal(t, 5, stock.Quantity)
	require.Equal(t, 4, stock.Reserved)
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "SAVE10", Type: models.CouponPercent, Value: 10, Active: true,
	}).Error)

	res, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 2}}, "SAVE10", 15)
	require.NoError(t, err)

	// 200 subtotal - 20 discount + 15 shipping
	require.Equal(t, 195.00, res.Order.TotalAmount)
	require.NotNil(t, res.Order.CouponID)
	require.Equal(t, "SAVE10", res.Order.CouponCode)

	// used_count moves at payment success, not at order creation.
	var coupon models.Coupon
	require.NoError(t, db.Where("code = ?", "SAVE10").First(&coupon).Error)
	require.Equal(t, 0, coupon.UsedCount)
}

func TestCheckoutInvalidCouponAborts(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	_, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 2}}, "BOGUS", 0)

	var couponErr *InvalidCouponError
	require.ErrorAs(t, err, &couponErr)
	require.Equal(t, "BOGUS", couponErr.Code)

	// Fails closed: the reservation is rolled back with the order.
	stock := testutil.GetStock(t, db, variantID)
	require.Equal(t, 0, stock.Reserved)

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestCheckoutClampsNegativeTotal(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "sample", 5, 10)
	require.NoError(t, db.Create(&models.Coupon{
		Code: "BIG", Type: models.CouponFixed, Value: 100, Active: true,
	}).Error)

	res, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 1}}, "BIG", 0)
	require.NoError(t, err)
	require.Equal(t, 0.00, res.Order.TotalAmount)
}

func TestCheckoutUsesSalePrice(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	sale := 80.00
	require.NoError(t, db.Model(&models.Price{}).
		Where("variant_id = ?", variantID).
		Update("sale_price", &sale).Error)

	res, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 1}}, "", 0)
	require.NoError(t, err)
	require.Equal(t, 80.00, res.Order.TotalAmount)
}

func TestCheckoutPriceSnapshotSurvivesRepricing(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	res, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 2}}, "", 0)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Price{}).
		Where("variant_id = ?", variantID).
		Update("base_price", 999).Error)

	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", res.Order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, 100.00, items[0].Price)

	var subtotal float64
	for _, it := range items {
		subtotal += it.Price * float64(it.Quantity)
	}
	require.Equal(t, res.Order.TotalAmount, subtotal)
}

func TestCheckoutMissingCustomer(t *testing.T) {
	svc, db := newService(t)
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	_, err := svc.Checkout(context.Background(), 42,
		[]ItemRequest{{VariantID: variantID, Quantity: 1}}, "", 0)
	require.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestCheckoutMissingPriceFailsClosed(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)
	require.NoError(t, db.Where("variant_id = ?", variantID).Delete(&models.Price{}).Error)

	_, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 1}}, "", 0)
	require.True(t, errors.Is(err, ErrValidation))

	require.Equal(t, 0, testutil.GetStock(t, db, variantID).Reserved)
}

func TestCheckoutEmptyItems(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")

	_, err := svc.Checkout(context.Background(), userID, nil, "", 0)
	require.True(t, errors.Is(err, ErrValidation))
}

func TestCheckoutClearsCart(t *testing.T) {
	svc, db := newService(t)
	userID, _ := testutil.SeedCustomer(t, db, "alice")
	variantID := testutil.SeedCatalog(t, db, "whey", 100, 10)

	cart := models.Cart{UserID: userID}
	require.NoError(t, db.Create(&cart).Error)
	require.NoError(t, db.Create(&models.CartItem{
		CartID: cart.ID, VariantID: variantID, Quantity: 2, Price: 100,
	}).Error)

	_, err := svc.Checkout(context.Background(), userID,
		[]ItemRequest{{VariantID: variantID, Quantity: 2}}, "", 0)
	require.NoError(t, err)

	var itemCount int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&itemCount).Error)
	require.Zero(t, itemCount)
}
