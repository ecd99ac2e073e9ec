package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionType classifies a journal row.
type TransactionType string

const (
	TransactionTopup               TransactionType = "topup"
	TransactionSubscriptionPayment TransactionType = "subscription_payment"
	TransactionTransfer            TransactionType = "transfer"
	TransactionOrderPayment        TransactionType = "order_payment"
	TransactionRefund              TransactionType = "refund"
	TransactionExchange            TransactionType = "exchange"
)

// TransactionStatus is the settlement state of a journal row.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is an append-only journal row for a money or meal movement.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID        uint64            `gorm:"not null;index"`                                // Acting user ID.
	Amount        decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0"`         // Money amount or plate count.
	Type          TransactionType   `gorm:"type:varchar(30);not null;index"`               // Movement kind.
	PaymentMethod string            `gorm:"type:varchar(50)"`                              // Method label.
	Status        TransactionStatus `gorm:"type:varchar(20);not null;default:'completed'"` // Settlement state.
	ReferenceID   string            `gorm:"type:varchar(100);index"`                       // Correlation id such as sub_12.
	Metadata      datatypes.JSON    `gorm:"type:jsonb"`                                    // Structured details.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
