package ledger

import (
	"context"
	"time"

	"github.com/igifu/campus-meals/internal/db"
	"github.com/igifu/campus-meals/internal/models"
	"gorm.io/gorm"
)

// recordUsage appends one log row per consumed plate, numbering slots from
// firstIndex. A duplicate slot means another writer consumed the same plate.
func recordUsage(tx *gorm.DB, sub models.Subscription, firstIndex, count int, now time.Time) error {
	logs := make([]models.MealUsageLog, 0, count)
	for i := 0; i < count; i++ {
		logs = append(logs, models.MealUsageLog{
			SubscriptionID: sub.ID,
			MealIndex:      firstIndex + i,
			StudentID:      sub.StudentID,
			RestaurantID:   sub.RestaurantID,
			UsedAt:         now,
		})
	}
	if errCreate := tx.Create(&logs).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return ErrConflict
		}
		return errCreate
	}
	return nil
}

// UsedMealIndices returns the consumed plate slots of a subscription in order.
func (l *Ledger) UsedMealIndices(ctx context.Context, subscriptionID uint64) ([]int, error) {
	var indices []int
	if errFind := l.db.WithContext(ctx).
		Model(&models.MealUsageLog{}).
		Where("subscription_id = ?", subscriptionID).
		Order("meal_index ASC").
		Pluck("meal_index", &indices).Error; errFind != nil {
		return nil, classify("list used meals", errFind)
	}
	if indices == nil {
		indices = []int{}
	}
	return indices, nil
}

// UsageFilter narrows ListUsage results.
type UsageFilter struct {
	StudentID    uint64
	RestaurantID uint64
	Since        time.Time
	Limit        int
}

// ListUsage returns usage logs newest first.
func (l *Ledger) ListUsage(ctx context.Context, filter UsageFilter) ([]models.MealUsageLog, error) {
	q := l.db.WithContext(ctx).Model(&models.MealUsageLog{})
	if filter.StudentID != 0 {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.RestaurantID != 0 {
		q = q.Where("restaurant_id = ?", filter.RestaurantID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("used_at >= ?", filter.Since.UTC())
	}
	q = q.Order("used_at DESC, id DESC").Limit(normalizeLimit(filter.Limit))
	var logs []models.MealUsageLog
	if errFind := q.Find(&logs).Error; errFind != nil {
		return nil, classify("list usage", errFind)
	}
	return logs, nil
}

func usedMealsBySubscription(conn *gorm.DB, subscriptionIDs []uint64) (map[uint64][]int, error) {
	out := make(map[uint64][]int, len(subscriptionIDs))
	if len(subscriptionIDs) == 0 {
		return out, nil
	}
	var logs []models.MealUsageLog
	if errFind := conn.Select("subscription_id", "meal_index").
		Where("subscription_id IN ?", subscriptionIDs).
		Order("subscription_id ASC, meal_index ASC").
		Find(&logs).Error; errFind != nil {
		return nil, errFind
	}
	for _, entry := range logs {
		out[entry.SubscriptionID] = append(out[entry.SubscriptionID], entry.MealIndex)
	}
	return out, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
