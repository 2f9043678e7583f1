package payments

import (
	"fmt"

	"github.com/nutrishop/storefront/internal/models"
)

// Provider abstracts the payment gateway: it hands out a redirect URL
// for a freshly created payment and later calls back on the webhook.
// Swapping in a real gateway must not touch the checkout service.
type Provider interface {
	Name() string
	Initiate(order *models.Order, paymentID uint) (string, error)
}

type MockProvider struct {
	BaseURL string
}

func (p *MockProvider) Name() string { return "mockpay" }

func (p *MockProvider) Initiate(order *models.Order, paymentID uint) (string, error) {
	return fmt.Sprintf("%s?paymentId=%d&order=%s", p.BaseURL, paymentID, order.OrderNumber), nil
}
