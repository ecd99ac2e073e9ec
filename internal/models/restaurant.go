package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RestaurantStatus is the approval state of a restaurant.
type RestaurantStatus string

const (
	RestaurantPending   RestaurantStatus = "Pending"
	RestaurantApproved  RestaurantStatus = "Approved"
	RestaurantSuspended RestaurantStatus = "Suspended"
)

// Restaurant is a venue that sells meal plans.
type Restaurant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerID uint64 `gorm:"not null;uniqueIndex"` // Owning restaurant user ID.
	Owner   *User  `gorm:"foreignKey:OwnerID"`   // Owning restaurant user.

	Name        string           `gorm:"type:varchar(255);not null"`                  // Display name.
	Location    string           `gorm:"type:varchar(255)"`                           // Free-form location.
	Description string           `gorm:"type:text"`                                   // Restaurant description.
	Status      RestaurantStatus `gorm:"type:varchar(20);not null;default:'Pending'"` // Approval status.

	MealPlans []MealPlan `gorm:"foreignKey:RestaurantID"` // Plans offered.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// MealPlan is a purchasable bundle of plates offered by a restaurant.
type MealPlan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RestaurantID uint64 `gorm:"not null;index"` // Offering restaurant ID.

	Name         string          `gorm:"type:varchar(255);not null"`            // Plan name.
	Description  string          `gorm:"type:text"`                             // Plan description.
	TotalPlates  int             `gorm:"not null"`                              // Plates included.
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"` // Purchase price.
	DurationDays int             `gorm:"not null"`                              // Validity window in days.

	IsActive bool `gorm:"not null;default:true"` // Whether the plan can be bought.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
