package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "Active"
	SubscriptionExpired  SubscriptionStatus = "Expired"
	SubscriptionDepleted SubscriptionStatus = "Depleted"
)

// Subscription is a student's prepaid entitlement to plates at one restaurant.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	StudentID    uint64 `gorm:"not null;index"` // Owning student user ID.
	RestaurantID uint64 `gorm:"not null;index"` // Restaurant the plates are valid at.
	PlanID       uint64 `gorm:"not null;index"` // Purchased meal plan ID.

	TotalPlates     int `gorm:"not null;check:chk_subscriptions_plates,used_plates >= 0 AND used_plates <= total_plates"` // Current plate entitlement.
	UsedPlates      int `gorm:"not null;default:0"`                                                                      // Plates consumed so far.
	PurchasedPlates int `gorm:"not null;default:0"`                                                                      // Plates at purchase time, used for proration.
	DurationDays    int `gorm:"not null;default:0"`                                                                      // Validity window in days.

	PricePaid     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"` // Amount charged at purchase.
	PaymentMethod string          `gorm:"type:varchar(50);not null"`             // Purchase payment method.
	PaymentPhone  string          `gorm:"type:varchar(20)"`                      // Payer phone.

	Status     SubscriptionStatus `gorm:"type:varchar(20);not null;default:'Active';index"` // Stored lifecycle state.
	ExpiryDate time.Time          `gorm:"not null;index"`                                   // Last instant the plates are redeemable.

	TransferredFromID *uint64 `gorm:"index"` // Source subscription when created by sharing.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// RemainingPlates returns plates still available for consumption or sharing.
func (s Subscription) RemainingPlates() int {
	return s.TotalPlates - s.UsedPlates
}

// EffectiveStatus reports Expired for an active subscription past its expiry.
func (s Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == SubscriptionActive && now.After(s.ExpiryDate) {
		return SubscriptionExpired
	}
	return s.Status
}

// MealUsageLog is an append-only record of one consumed plate.
type MealUsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SubscriptionID uint64 `gorm:"not null;uniqueIndex:idx_meal_usage_logs_subscription_meal,priority:1"` // Consumed subscription ID.
	MealIndex      int    `gorm:"not null;uniqueIndex:idx_meal_usage_logs_subscription_meal,priority:2"` // Zero-based plate slot.
	StudentID      uint64 `gorm:"not null;index"`                                                       // Owning student user ID.
	RestaurantID   uint64 `gorm:"not null;index"`                                                       // Serving restaurant ID.

	UsedAt time.Time `gorm:"not null;index"` // Consumption timestamp.
}
