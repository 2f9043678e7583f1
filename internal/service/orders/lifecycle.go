package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nutrishop/storefront/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// transitions is the canonical order state machine. Canceled is
// terminal and accepts nothing.
var transitions = map[string][]string{
	models.OrderPending:  {models.OrderPaid, models.OrderCanceled},
	models.OrderPaid:     {models.OrderShipped, models.OrderCanceled},
	models.OrderShipped:  {models.OrderCanceled},
	models.OrderCanceled: {},
}

type InvalidTransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	allowed := strings.Join(e.Allowed, ", ")
	if allowed == "" {
		allowed = "none"
	}
	return fmt.Sprintf("cannot transition from %s to %s (allowed: %s)", e.From, e.To, allowed)
}

type Service struct {
	DB *gorm.DB
}

// Transition moves an order along the state machine. The status write
// is guarded by the current status so a concurrent transition loses
// with a conflict instead of jumping an edge.
func (s *Service) Transition(ctx context.Context, orderID uint, target string) (*models.Order, error) {
	var updated models.Order

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		allowed := transitions[order.Status]
		ok := false
		for _, st := range allowed {
			if st == target {
				ok = true
				break
			}
		}
		if !ok {
			return &InvalidTransitionError{From: order.Status, To: target, Allowed: allowed}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed status concurrently", ErrConflict, order.ID)
		}

		// Canceling an order that never got paid releases its
		// reservations; a paid order's stock is already decremented
		// and restocking is a separate, deliberate operation.
		if target == models.OrderCanceled && order.Status == models.OrderPending {
			for _, it := range order.Items {
				err := tx.Model(&models.Stock{}).
					Where("variant_id = ?", it.VariantID).
					Update("reserved", gorm.Expr("reserved - ?", it.Quantity)).Error
				if err != nil {
					return err
				}
			}
		}

		order.Status = target
		updated = order
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return &updated, nil
}

// List returns orders newest first; customerID 0 means all customers
// (admin view).
func (s *Service) List(ctx context.Context, customerID uint, limit, offset int) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{}).Preload("Items")
	if customerID != 0 {
		q = q.Where("customer_id = ?", customerID)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Service) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

// Search matches the keyword against order numbers and customer
// name/email; customerID scopes non-admin callers to their own orders.
func (s *Service) Search(ctx context.Context, keyword string, customerID uint) ([]models.Order, error) {
	kw := "%" + keyword + "%"
	q := s.DB.WithContext(ctx).Model(&models.Order{}).
		Joins("JOIN customers ON customers.id = orders.customer_id").
		Where("orders.order_number LIKE ? OR customers.name LIKE ? OR customers.email LIKE ?", kw, kw, kw).
		Preload("Items")
	if customerID != 0 {
		q = q.Where("orders.customer_id = ?", customerID)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Service) Delete(ctx context.Context, orderID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&order).Error
	})
}
