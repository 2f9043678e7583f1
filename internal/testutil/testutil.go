package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nutrishop/storefront/internal/config"
	"github.com/nutrishop/storefront/internal/models"
)

var dbSeq int64

// NewDB opens a fresh in-memory sqlite database with the full schema.
// Each call gets its own named database so parallel tests do not share
// state through the sqlite connection pool.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

type Event struct {
	Topic string
	Key   string
	Body  interface{}
}

// StubPublisher collects events instead of talking to kafka.
type StubPublisher struct {
	mu     sync.Mutex
	Events []Event
}

func (s *StubPublisher) PublishEvent(_ context.Context, topic, key string, event interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Topic: topic, Key: key, Body: event})
	return nil
}

// SeedCatalog creates a product with one variant, price and stock and
// returns the variant id.
func SeedCatalog(t *testing.T, db *gorm.DB, name string, price float64, stock int) uint {
	t.Helper()

	product := models.Product{Name: name, Published: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{ProductID: product.ID, SKU: name + "-default"}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	if err := db.Create(&models.Price{VariantID: variant.ID, BasePrice: price}).Error; err != nil {
		t.Fatalf("seed price: %v", err)
	}
	if err := db.Create(&models.Stock{VariantID: variant.ID, Quantity: stock}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return variant.ID
}

// SeedCustomer creates a user plus customer pair and returns both ids.
func SeedCustomer(t *testing.T, db *gorm.DB, username string) (userID, customerID uint) {
	t.Helper()

	user := models.User{Username: username, PasswordHash: "x", Role: models.RoleCustomer}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	customer := models.Customer{
		UserID: user.ID,
		Name:   username,
		Email:  username + "@example.com",
	}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return user.ID, customer.ID
}

func GetStock(t *testing.T, db *gorm.DB, variantID uint) models.Stock {
	t.Helper()

	var stock models.Stock
	if err := db.Where("variant_id = ?", variantID).First(&stock).Error; err != nil {
		t.Fatalf("get stock: %v", err)
	}
	return stock
}
