package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies which part of the system an account belongs to.
type Role string

const (
	// RoleStudent is a meal-card holder.
	RoleStudent Role = "student"
	// RoleRestaurant is a restaurant owner.
	RoleRestaurant Role = "restaurant"
	// RoleAdmin is a platform operator.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleRestaurant, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:varchar(100);not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:varchar(255);not null;uniqueIndex"` // Email address.
	Phone    string `gorm:"type:varchar(20);index"`                 // Phone number used for lookups.
	Password string `gorm:"type:text;not null"`                     // Hashed password.
	Role     Role   `gorm:"type:varchar(20);not null;index"`        // Account role.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// StudentProfile holds the two wallets and the card lock flag of a student.
type StudentProfile struct {
	UserID uint64 `gorm:"primaryKey"`              // Owning student user ID.
	User   *User  `gorm:"foreignKey:UserID"`       // Owning student.

	MealWalletBalance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;check:chk_student_profiles_meal_wallet,meal_wallet_balance >= 0"`     // Meal wallet balance.
	FlexieWalletBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;check:chk_student_profiles_flexie_wallet,flexie_wallet_balance >= 0"` // Flexie wallet balance.

	CardLocked bool `gorm:"not null;default:false"` // Blocks wallet spending when set.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
