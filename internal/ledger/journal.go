package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry describes a journal row to append.
type Entry struct {
	UserID        uint64
	Amount        decimal.Decimal
	Type          models.TransactionType
	PaymentMethod string
	Status        models.TransactionStatus
	ReferenceID   string
	Metadata      map[string]any
}

func (e Entry) validate() error {
	if e.UserID == 0 {
		return invalid("user_id", "is required")
	}
	if e.Amount.IsNegative() {
		return invalid("amount", "must not be negative")
	}
	switch e.Type {
	case models.TransactionTopup, models.TransactionSubscriptionPayment, models.TransactionTransfer,
		models.TransactionOrderPayment, models.TransactionRefund, models.TransactionExchange:
	default:
		return invalid("type", "unknown transaction type")
	}
	switch e.Status {
	case "", models.TransactionPending, models.TransactionCompleted, models.TransactionFailed:
	default:
		return invalid("status", "unknown transaction status")
	}
	return nil
}

// appendEntry inserts a journal row inside an existing transaction.
func appendEntry(tx *gorm.DB, e Entry, now time.Time) (models.Transaction, error) {
	if errValidate := e.validate(); errValidate != nil {
		return models.Transaction{}, errValidate
	}
	status := e.Status
	if status == "" {
		status = models.TransactionCompleted
	}
	row := models.Transaction{
		UserID:        e.UserID,
		Amount:        e.Amount,
		Type:          e.Type,
		PaymentMethod: strings.TrimSpace(e.PaymentMethod),
		Status:        status,
		ReferenceID:   strings.TrimSpace(e.ReferenceID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(e.Metadata) > 0 {
		raw, errMarshal := json.Marshal(e.Metadata)
		if errMarshal != nil {
			return models.Transaction{}, invalid("metadata", errMarshal.Error())
		}
		row.Metadata = datatypes.JSON(raw)
	}
	if errCreate := tx.Create(&row).Error; errCreate != nil {
		return models.Transaction{}, errCreate
	}
	return row, nil
}

// AppendTransaction journals a movement recorded outside the ledger, such as
// a pending external payment awaiting confirmation.
func (l *Ledger) AppendTransaction(ctx context.Context, e Entry) (models.Transaction, error) {
	if errValidate := e.validate(); errValidate != nil {
		return models.Transaction{}, errValidate
	}
	var row models.Transaction
	errTx := l.atomic(ctx, "append transaction", func(tx *gorm.DB) error {
		created, errAppend := appendEntry(tx, e, l.nowUTC())
		if errAppend != nil {
			return errAppend
		}
		row = created
		return nil
	})
	if errTx != nil {
		return models.Transaction{}, errTx
	}
	return row, nil
}

// FinalizeTransaction settles a pending journal row as completed or failed.
// Settled rows are immutable.
func (l *Ledger) FinalizeTransaction(ctx context.Context, id uint64, status models.TransactionStatus) (models.Transaction, error) {
	if status != models.TransactionCompleted && status != models.TransactionFailed {
		return models.Transaction{}, invalid("status", "must be completed or failed")
	}
	now := l.nowUTC()
	var row models.Transaction
	errTx := l.atomic(ctx, "finalize transaction", func(tx *gorm.DB) error {
		if errFind := lockForUpdate(tx).First(&row, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return errFind
		}
		if row.Status != models.TransactionPending {
			return ErrTransactionSettled
		}
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", id, models.TransactionPending).
			Updates(map[string]any{"status": status, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConflict
		}
		row.Status = status
		row.UpdatedAt = now
		return nil
	})
	if errTx != nil {
		return models.Transaction{}, errTx
	}
	return row, nil
}

// TransactionFilter narrows ListTransactions results.
type TransactionFilter struct {
	UserID      uint64
	Type        models.TransactionType
	ReferenceID string
	Limit       int
	Offset      int
}

// ListTransactions returns journal rows newest first.
func (l *Ledger) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	q := l.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if ref := strings.TrimSpace(filter.ReferenceID); ref != "" {
		q = q.Where("reference_id = ?", ref)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var rows []models.Transaction
	if errFind := q.Order("created_at DESC, id DESC").Limit(normalizeLimit(filter.Limit)).Find(&rows).Error; errFind != nil {
		return nil, classify("list transactions", errFind)
	}
	return rows, nil
}
