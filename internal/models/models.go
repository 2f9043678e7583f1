package models

import "time"

// Order status values. Transitions between them are enforced by the
// orders service; do not write Status columns directly outside it.
const (
	OrderPending  = "Pending"
	OrderPaid     = "Paid"
	OrderShipped  = "Shipped"
	OrderCanceled = "Canceled"
)

const (
	PaymentPending = "Pending"
	PaymentSuccess = "Success"
	PaymentFailed  = "Failed"
)

const (
	CouponPercent = "percent"
	CouponFixed   = "fixed"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type Customer struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  uint   `gorm:"uniqueIndex;not null"     json:"user_id"`
	Name    string `gorm:"not null"                 json:"name"`
	Email   string `gorm:"unique;not null"          json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	Description string    `json:"description"`
	Published   bool      `gorm:"default:true"             json:"published"`
	Variants    []Variant `gorm:"foreignKey:ProductID"     json:"variants,omitempty"`
}

type Variant struct {
	ID         uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID  uint              `gorm:"index;not null"           json:"product_id"`
	SKU        string            `gorm:"index"                    json:"sku"`
	Attributes map[string]string `gorm:"serializer:json"          json:"attributes,omitempty"`
}

type Price struct {
	ID        uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID uint     `gorm:"uniqueIndex;not null"     json:"variant_id"`
	BasePrice float64  `gorm:"not null"                 json:"base_price"`
	SalePrice *float64 `json:"sale_price,omitempty"`
}

// Stock keeps a reservation counter next to the physical quantity.
// Available stock is quantity - reserved; both change only through
// guarded UPDATEs in the checkout and payments services.
type Stock struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID uint `gorm:"uniqueIndex;not null"     json:"variant_id"`
	Quantity  int  `gorm:"not null;default:0"       json:"quantity"`
	Reserved  int  `gorm:"not null;default:0"       json:"reserved"`
}

type Coupon struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code       string     `gorm:"unique;not null"          json:"code"`
	Type       string     `gorm:"not null;default:percent" json:"type"`
	Value      float64    `gorm:"not null"                 json:"value"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	UsageLimit int        `gorm:"default:0"                json:"usage_limit"`
	UsedCount  int        `gorm:"default:0"                json:"used_count"`
	Active     bool       `gorm:"default:true"             json:"active"`
}

type Cart struct {
	ID     uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint       `gorm:"uniqueIndex;not null"     json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID"        json:"items"`
}

type CartItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"   json:"id"`
	CartID    uint    `gorm:"index;not null"             json:"cart_id"`
	VariantID uint    `gorm:"not null"                   json:"variant_id"`
	Quantity  uint    `gorm:"default:1;check:quantity>0" json:"quantity"`
	Price     float64 `gorm:"not null"                   json:"price"`
}

type Order struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID  uint        `gorm:"index;not null"           json:"customer_id"`
	OrderNumber string      `gorm:"unique;not null"          json:"order_number"`
	Status      string      `gorm:"not null"                 json:"status"`
	TotalAmount float64     `gorm:"not null"                 json:"total_amount"`
	CouponID    *uint       `json:"coupon_id,omitempty"`
	CouponCode  string      `json:"coupon_code,omitempty"`
	CreatedAt   int64       `gorm:"not null"                 json:"created_at"`
	Items       []OrderItem `gorm:"foreignKey:OrderID"       json:"items"`
}

// OrderItem snapshots the unit price at order time; it is never
// re-priced when the catalog changes.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"   json:"id"`
	OrderID   uint    `gorm:"index;not null"             json:"order_id"`
	VariantID uint    `gorm:"not null"                   json:"variant_id"`
	Quantity  uint    `gorm:"default:1;check:quantity>0" json:"quantity"`
	Price     float64 `gorm:"not null"                   json:"price"`
}

type Payment struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint    `gorm:"index;not null"           json:"order_id"`
	Provider    string  `gorm:"not null"                 json:"provider"`
	ProviderRef *string `gorm:"uniqueIndex"              json:"provider_ref,omitempty"`
	Amount      float64 `gorm:"not null"                 json:"amount"`
	Status      string  `gorm:"not null;default:Pending" json:"status"`
}
