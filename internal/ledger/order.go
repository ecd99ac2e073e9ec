package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// orderTransitions lists the statuses each order status may move to.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:  {models.OrderApproved, models.OrderRejected, models.OrderServed},
	models.OrderApproved: {models.OrderServed, models.OrderRejected},
}

func canTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts a user-supplied order status.
func ParseOrderStatus(raw string) (models.OrderStatus, error) {
	switch status := models.OrderStatus(raw); status {
	case models.OrderPending, models.OrderApproved, models.OrderRejected, models.OrderServed:
		return status, nil
	default:
		return "", invalid("status", "unknown order status")
	}
}

// PlaceOrderParams holds inputs for PlaceOrder.
type PlaceOrderParams struct {
	StudentID      uint64
	RestaurantID   uint64
	SubscriptionID *uint64
	Plates         int
}

// PlaceOrder creates a pending order. When it draws on a subscription, the
// prorated plate price is charged to the meal wallet and held on the order
// until it is served or refunded on rejection.
func (l *Ledger) PlaceOrder(ctx context.Context, p PlaceOrderParams) (models.Order, error) {
	switch {
	case p.StudentID == 0:
		return models.Order{}, invalid("student_id", "is required")
	case p.RestaurantID == 0:
		return models.Order{}, invalid("restaurant_id", "is required")
	case p.Plates <= 0:
		return models.Order{}, invalid("plates", "must be positive")
	}
	now := l.nowUTC()
	order := models.Order{
		StudentID:      p.StudentID,
		RestaurantID:   p.RestaurantID,
		SubscriptionID: p.SubscriptionID,
		Plates:         p.Plates,
		ChargedAmount:  decimal.Zero,
		Status:         models.OrderPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	errTx := l.atomic(ctx, "place order", func(tx *gorm.DB) error {
		if errStudent := requireStudent(tx, p.StudentID, ErrStudentNotFound); errStudent != nil {
			return errStudent
		}
		var restaurant models.Restaurant
		if errFind := tx.First(&restaurant, p.RestaurantID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrRestaurantNotFound
			}
			return errFind
		}
		if restaurant.Status != models.RestaurantApproved {
			return ErrRestaurantUnavailable
		}

		var sub models.Subscription
		if p.SubscriptionID != nil {
			locked, errLoad := lockSubscription(tx, *p.SubscriptionID, Scope{StudentID: p.StudentID, RestaurantID: p.RestaurantID})
			if errLoad != nil {
				return errLoad
			}
			if errState := checkRedeemable(locked, now); errState != nil {
				return errState
			}
			if locked.RemainingPlates() < p.Plates {
				return ErrInsufficientPlates
			}
			sub = locked
			order.ChargedAmount = prorate(sub, p.Plates)
		}

		if errCreate := tx.Create(&order).Error; errCreate != nil {
			return errCreate
		}
		if !order.ChargedAmount.IsPositive() {
			return nil
		}
		if _, errDebit := adjustWalletTx(tx, p.StudentID, MealWallet, order.ChargedAmount.Neg(), now); errDebit != nil {
			return errDebit
		}
		_, errJournal := appendEntry(tx, Entry{
			UserID:        p.StudentID,
			Amount:        order.ChargedAmount,
			Type:          models.TransactionOrderPayment,
			PaymentMethod: string(MealWallet) + "_wallet",
			Status:        models.TransactionCompleted,
			ReferenceID:   orderReference(order.ID),
			Metadata: map[string]any{
				"order_id":        order.ID,
				"subscription_id": sub.ID,
				"plates":          order.Plates,
			},
		}, now)
		return errJournal
	})
	if errTx != nil {
		return models.Order{}, errTx
	}
	return order, nil
}

// prorate prices plates at the subscription's purchase rate.
func prorate(sub models.Subscription, plates int) decimal.Decimal {
	base := sub.PurchasedPlates
	if base <= 0 {
		base = sub.TotalPlates
	}
	if base <= 0 || !sub.PricePaid.IsPositive() {
		return decimal.Zero
	}
	return sub.PricePaid.Div(decimal.NewFromInt(int64(base))).Mul(decimal.NewFromInt(int64(plates))).Round(2)
}

// UpdateOrderStatus moves an order of restaurantID to status. Serving consumes
// the order's plates from its subscription and rejecting refunds any charge,
// both in the same atomic unit as the status change.
func (l *Ledger) UpdateOrderStatus(ctx context.Context, restaurantID, orderID uint64, status models.OrderStatus) (models.Order, error) {
	if restaurantID == 0 {
		return models.Order{}, invalid("restaurant_id", "is required")
	}
	if _, errStatus := ParseOrderStatus(string(status)); errStatus != nil {
		return models.Order{}, errStatus
	}
	now := l.nowUTC()
	var order models.Order
	errTx := l.atomic(ctx, "update order status", func(tx *gorm.DB) error {
		if errFind := lockForUpdate(tx).Where("id = ? AND restaurant_id = ?", orderID, restaurantID).First(&order).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return errFind
		}
		if !canTransition(order.Status, status) {
			return ErrInvalidOrderTransition
		}

		switch status {
		case models.OrderServed:
			if order.SubscriptionID != nil {
				if _, errConsume := consumePlatesTx(tx, *order.SubscriptionID, RestaurantScope(restaurantID), order.Plates, now); errConsume != nil {
					return errConsume
				}
			}
		case models.OrderRejected:
			if errRefund := refundOrderTx(tx, order, now); errRefund != nil {
				return errRefund
			}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(map[string]any{"status": status, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConflict
		}
		order.Status = status
		order.UpdatedAt = now
		return nil
	})
	if errTx != nil {
		return models.Order{}, errTx
	}
	return order, nil
}

func refundOrderTx(tx *gorm.DB, order models.Order, now time.Time) error {
	if !order.ChargedAmount.IsPositive() {
		return nil
	}
	if _, errCredit := adjustWalletTx(tx, order.StudentID, MealWallet, order.ChargedAmount, now); errCredit != nil {
		return errCredit
	}
	_, errJournal := appendEntry(tx, Entry{
		UserID:        order.StudentID,
		Amount:        order.ChargedAmount,
		Type:          models.TransactionRefund,
		PaymentMethod: string(MealWallet) + "_wallet",
		Status:        models.TransactionCompleted,
		ReferenceID:   orderReference(order.ID),
		Metadata:      map[string]any{"order_id": order.ID},
	}, now)
	return errJournal
}

// OrderFilter narrows ListOrders results.
type OrderFilter struct {
	StudentID    uint64
	RestaurantID uint64
	Status       models.OrderStatus
	Limit        int
}

// ListOrders returns orders newest first.
func (l *Ledger) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if filter.StudentID == 0 && filter.RestaurantID == 0 {
		return nil, invalid("scope", "a student or restaurant is required")
	}
	q := l.db.WithContext(ctx).Model(&models.Order{})
	if filter.StudentID != 0 {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.RestaurantID != 0 {
		q = q.Where("restaurant_id = ?", filter.RestaurantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var orders []models.Order
	if errFind := q.Order("created_at DESC, id DESC").Limit(normalizeLimit(filter.Limit)).Find(&orders).Error; errFind != nil {
		return nil, classify("list orders", errFind)
	}
	return orders, nil
}
