package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderApproved OrderStatus = "approved"
	OrderRejected OrderStatus = "rejected"
	OrderServed   OrderStatus = "served"
)

// Order is a student's request to be served plates at a restaurant.
type Order struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	StudentID      uint64  `gorm:"not null;index"` // Ordering student user ID.
	RestaurantID   uint64  `gorm:"not null;index"` // Serving restaurant ID.
	SubscriptionID *uint64 `gorm:"index"`          // Subscription the plates come from.

	Plates        int             `gorm:"not null;default:1"`                    // Plates requested.
	ChargedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"` // Meal wallet charge held by the order.
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
