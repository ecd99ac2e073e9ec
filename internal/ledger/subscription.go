package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Labels recorded on subscriptions created by sharing.
const (
	TransferPaymentMethod = "transfer"
	MealShareMethod       = "meal_share"
)

// CreateSubscriptionParams holds inputs for CreateSubscription.
type CreateSubscriptionParams struct {
	StudentID     uint64
	RestaurantID  uint64
	PlanID        uint64
	TotalPlates   int
	PricePaid     decimal.Decimal
	DurationDays  int
	PaymentMethod string
	PaymentPhone  string
}

func (p CreateSubscriptionParams) validate() error {
	switch {
	case p.StudentID == 0:
		return invalid("student_id", "is required")
	case p.RestaurantID == 0:
		return invalid("restaurant_id", "is required")
	case p.PlanID == 0:
		return invalid("plan_id", "is required")
	case p.TotalPlates <= 0:
		return invalid("total_plates", "must be positive")
	case p.PricePaid.IsNegative():
		return invalid("price_paid", "must not be negative")
	case p.DurationDays <= 0:
		return invalid("duration_days", "must be positive")
	case strings.TrimSpace(p.PaymentMethod) == "":
		return invalid("payment_method", "is required")
	}
	return nil
}

// CreateSubscription records a purchased subscription and its payment journal
// row in one atomic unit. No wallet is credited: the payment happened outside
// the ledger and is only journaled here.
func (l *Ledger) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (models.Subscription, error) {
	if errValidate := p.validate(); errValidate != nil {
		return models.Subscription{}, errValidate
	}
	now := l.nowUTC()
	sub := models.Subscription{
		StudentID:       p.StudentID,
		RestaurantID:    p.RestaurantID,
		PlanID:          p.PlanID,
		TotalPlates:     p.TotalPlates,
		UsedPlates:      0,
		PurchasedPlates: p.TotalPlates,
		DurationDays:    p.DurationDays,
		PricePaid:       p.PricePaid.Round(2),
		PaymentMethod:   strings.TrimSpace(p.PaymentMethod),
		PaymentPhone:    strings.TrimSpace(p.PaymentPhone),
		Status:          models.SubscriptionActive,
		ExpiryDate:      expiryFrom(now, p.DurationDays),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	errTx := l.atomic(ctx, "create subscription", func(tx *gorm.DB) error {
		if errStudent := requireStudent(tx, p.StudentID, ErrStudentNotFound); errStudent != nil {
			return errStudent
		}
		var plan models.MealPlan
		if errPlan := tx.Where("id = ? AND restaurant_id = ?", p.PlanID, p.RestaurantID).First(&plan).Error; errPlan != nil {
			if errors.Is(errPlan, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return errPlan
		}
		if errCreate := tx.Create(&sub).Error; errCreate != nil {
			return errCreate
		}
		_, errJournal := appendEntry(tx, Entry{
			UserID:        p.StudentID,
			Amount:        sub.PricePaid,
			Type:          models.TransactionSubscriptionPayment,
			PaymentMethod: sub.PaymentMethod,
			Status:        models.TransactionCompleted,
			ReferenceID:   subscriptionReference(sub.ID),
			Metadata: map[string]any{
				"subscription_id": sub.ID,
				"plan_id":         sub.PlanID,
				"restaurant_id":   sub.RestaurantID,
				"total_plates":    sub.TotalPlates,
				"payment_phone":   sub.PaymentPhone,
			},
		}, now)
		return errJournal
	})
	if errTx != nil {
		return models.Subscription{}, errTx
	}
	return sub, nil
}

// SubscribeParams holds inputs for SubscribeToPlan.
type SubscribeParams struct {
	StudentID     uint64
	PlanID        uint64
	PaymentMethod string
	PaymentPhone  string
}

// SubscribeToPlan buys an active meal plan of an approved restaurant, taking
// plates, price and duration from the plan.
func (l *Ledger) SubscribeToPlan(ctx context.Context, p SubscribeParams) (models.Subscription, error) {
	if p.PlanID == 0 {
		return models.Subscription{}, invalid("plan_id", "is required")
	}
	var plan models.MealPlan
	if errPlan := l.db.WithContext(ctx).First(&plan, p.PlanID).Error; errPlan != nil {
		if errors.Is(errPlan, gorm.ErrRecordNotFound) {
			return models.Subscription{}, ErrPlanNotFound
		}
		return models.Subscription{}, classify("load meal plan", errPlan)
	}
	if !plan.IsActive {
		return models.Subscription{}, ErrPlanInactive
	}
	var restaurant models.Restaurant
	if errRestaurant := l.db.WithContext(ctx).First(&restaurant, plan.RestaurantID).Error; errRestaurant != nil {
		if errors.Is(errRestaurant, gorm.ErrRecordNotFound) {
			return models.Subscription{}, ErrRestaurantNotFound
		}
		return models.Subscription{}, classify("load restaurant", errRestaurant)
	}
	if restaurant.Status != models.RestaurantApproved {
		return models.Subscription{}, ErrRestaurantUnavailable
	}
	return l.CreateSubscription(ctx, CreateSubscriptionParams{
		StudentID:     p.StudentID,
		RestaurantID:  plan.RestaurantID,
		PlanID:        plan.ID,
		TotalPlates:   plan.TotalPlates,
		PricePaid:     plan.Price,
		DurationDays:  plan.DurationDays,
		PaymentMethod: p.PaymentMethod,
		PaymentPhone:  p.PaymentPhone,
	})
}

// ConsumePlates marks count plates of a subscription as eaten and writes one
// usage log per plate. The scope must name the owning student or the
// restaurant the subscription belongs to.
func (l *Ledger) ConsumePlates(ctx context.Context, subscriptionID uint64, scope Scope, count int) (models.Subscription, error) {
	if subscriptionID == 0 {
		return models.Subscription{}, invalid("subscription_id", "is required")
	}
	if scope.empty() {
		return models.Subscription{}, invalid("scope", "a student or restaurant is required")
	}
	if count <= 0 {
		return models.Subscription{}, invalid("count", "must be positive")
	}
	var out models.Subscription
	errTx := l.atomic(ctx, "consume plates", func(tx *gorm.DB) error {
		sub, errConsume := consumePlatesTx(tx, subscriptionID, scope, count, l.nowUTC())
		if errConsume != nil {
			return errConsume
		}
		out = sub
		return nil
	})
	if errTx != nil {
		return models.Subscription{}, errTx
	}
	return out, nil
}

func consumePlatesTx(tx *gorm.DB, subscriptionID uint64, scope Scope, count int, now time.Time) (models.Subscription, error) {
	sub, errLoad := lockSubscription(tx, subscriptionID, scope)
	if errLoad != nil {
		return models.Subscription{}, errLoad
	}
	if errState := checkRedeemable(sub, now); errState != nil {
		return models.Subscription{}, errState
	}
	if sub.UsedPlates+count > sub.TotalPlates {
		return models.Subscription{}, ErrInsufficientPlates
	}

	firstIndex := sub.UsedPlates
	newUsed := sub.UsedPlates + count
	newStatus := models.SubscriptionActive
	if newUsed == sub.TotalPlates {
		newStatus = models.SubscriptionDepleted
	}
	res := tx.Model(&models.Subscription{}).
		Where("id = ? AND used_plates = ? AND total_plates = ?", sub.ID, sub.UsedPlates, sub.TotalPlates).
		Updates(map[string]any{
			"used_plates": newUsed,
			"status":      newStatus,
			"updated_at":  now,
		})
	if res.Error != nil {
		return models.Subscription{}, res.Error
	}
	if res.RowsAffected != 1 {
		return models.Subscription{}, ErrConflict
	}
	if errUsage := recordUsage(tx, sub, firstIndex, count, now); errUsage != nil {
		return models.Subscription{}, errUsage
	}

	sub.UsedPlates = newUsed
	sub.Status = newStatus
	sub.UpdatedAt = now
	return sub, nil
}

// ShareParams holds inputs for ShareMeals.
type ShareParams struct {
	SenderID       uint64
	SubscriptionID uint64
	RecipientID    uint64
	Meals          int
}

// ShareResult returns both sides of a completed share.
type ShareResult struct {
	Sender    models.Subscription
	Recipient models.Subscription
}

// ShareMeals moves unused plates from the sender's subscription into a new
// subscription for the recipient at the same restaurant and plan.
// The sender always keeps at least one plate of entitlement.
func (l *Ledger) ShareMeals(ctx context.Context, p ShareParams) (ShareResult, error) {
	switch {
	case p.SenderID == 0:
		return ShareResult{}, invalid("sender_id", "is required")
	case p.SubscriptionID == 0:
		return ShareResult{}, invalid("subscription_id", "is required")
	case p.RecipientID == 0:
		return ShareResult{}, invalid("recipient_id", "is required")
	case p.RecipientID == p.SenderID:
		return ShareResult{}, invalid("recipient_id", "cannot share meals with yourself")
	case p.Meals <= 0:
		return ShareResult{}, invalid("meals", "must be positive")
	}

	now := l.nowUTC()
	var result ShareResult
	errTx := l.atomic(ctx, "share meals", func(tx *gorm.DB) error {
		sender, errLoad := lockSubscription(tx, p.SubscriptionID, StudentScope(p.SenderID))
		if errLoad != nil {
			return errLoad
		}
		if errState := checkRedeemable(sender, now); errState != nil {
			return errState
		}
		if errRecipient := requireStudent(tx, p.RecipientID, ErrRecipientNotFound); errRecipient != nil {
			return errRecipient
		}
		if sender.RemainingPlates() < p.Meals {
			return ErrInsufficientUnusedPlates
		}
		newTotal := sender.TotalPlates - p.Meals
		if newTotal == 0 {
			return invalid("meals", "must leave at least one plate on the subscription")
		}
		newStatus := models.SubscriptionActive
		if sender.UsedPlates == newTotal {
			newStatus = models.SubscriptionDepleted
		}

		res := tx.Model(&models.Subscription{}).
			Where("id = ? AND used_plates = ? AND total_plates = ?", sender.ID, sender.UsedPlates, sender.TotalPlates).
			Updates(map[string]any{
				"total_plates": newTotal,
				"status":       newStatus,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConflict
		}
		sender.TotalPlates = newTotal
		sender.Status = newStatus
		sender.UpdatedAt = now

		sourceID := sender.ID
		recipient := models.Subscription{
			StudentID:         p.RecipientID,
			RestaurantID:      sender.RestaurantID,
			PlanID:            sender.PlanID,
			TotalPlates:       p.Meals,
			UsedPlates:        0,
			PurchasedPlates:   p.Meals,
			DurationDays:      sender.DurationDays,
			PricePaid:         decimal.Zero,
			PaymentMethod:     TransferPaymentMethod,
			PaymentPhone:      TransferPaymentMethod,
			Status:            models.SubscriptionActive,
			ExpiryDate:        expiryFrom(now, sender.DurationDays),
			TransferredFromID: &sourceID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if errCreate := tx.Create(&recipient).Error; errCreate != nil {
			return errCreate
		}

		if _, errJournal := appendEntry(tx, Entry{
			UserID:        p.SenderID,
			Amount:        decimal.NewFromInt(int64(p.Meals)),
			Type:          models.TransactionTransfer,
			PaymentMethod: MealShareMethod,
			Status:        models.TransactionCompleted,
			ReferenceID:   shareReference(recipient.ID),
			Metadata: map[string]any{
				"from_subscription_id": sender.ID,
				"to_subscription_id":   recipient.ID,
				"recipient_id":         p.RecipientID,
				"meals":                p.Meals,
			},
		}, now); errJournal != nil {
			return errJournal
		}

		result = ShareResult{Sender: sender, Recipient: recipient}
		return nil
	})
	if errTx != nil {
		return ShareResult{}, errTx
	}
	return result, nil
}

// SubscriptionView is a subscription as seen at read time.
type SubscriptionView struct {
	models.Subscription
	EffectiveStatus models.SubscriptionStatus `json:"effective_status"`
	RemainingPlates int                       `json:"remaining_plates"`
	UsedMeals       []int                     `json:"used_meals"`
}

func newView(sub models.Subscription, used []int, now time.Time) SubscriptionView {
	if used == nil {
		used = []int{}
	}
	return SubscriptionView{
		Subscription:    sub,
		EffectiveStatus: sub.EffectiveStatus(now),
		RemainingPlates: sub.RemainingPlates(),
		UsedMeals:       used,
	}
}

// GetSubscription returns one subscription visible to scope.
func (l *Ledger) GetSubscription(ctx context.Context, subscriptionID uint64, scope Scope) (SubscriptionView, error) {
	var sub models.Subscription
	if errFind := scope.apply(l.db.WithContext(ctx).Where("id = ?", subscriptionID)).First(&sub).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return SubscriptionView{}, ErrSubscriptionNotFound
		}
		return SubscriptionView{}, classify("get subscription", errFind)
	}
	used, errUsed := l.UsedMealIndices(ctx, sub.ID)
	if errUsed != nil {
		return SubscriptionView{}, errUsed
	}
	return newView(sub, used, l.nowUTC()), nil
}

// ListStudentSubscriptions returns all subscriptions owned by a student, newest first.
func (l *Ledger) ListStudentSubscriptions(ctx context.Context, studentID uint64) ([]SubscriptionView, error) {
	return l.listSubscriptions(ctx, StudentScope(studentID))
}

// ListRestaurantSubscribers returns all subscriptions redeemable at a restaurant, newest first.
func (l *Ledger) ListRestaurantSubscribers(ctx context.Context, restaurantID uint64) ([]SubscriptionView, error) {
	return l.listSubscriptions(ctx, RestaurantScope(restaurantID))
}

func (l *Ledger) listSubscriptions(ctx context.Context, scope Scope) ([]SubscriptionView, error) {
	if scope.empty() {
		return nil, invalid("scope", "a student or restaurant is required")
	}
	var subs []models.Subscription
	if errFind := scope.apply(l.db.WithContext(ctx)).Order("created_at DESC, id DESC").Find(&subs).Error; errFind != nil {
		return nil, classify("list subscriptions", errFind)
	}
	ids := make([]uint64, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}
	usedBySub, errUsed := usedMealsBySubscription(l.db.WithContext(ctx), ids)
	if errUsed != nil {
		return nil, classify("list usage", errUsed)
	}
	now := l.nowUTC()
	out := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, newView(sub, usedBySub[sub.ID], now))
	}
	return out, nil
}

// FindRedeemableSubscription looks up a student by numeric id or phone number
// and returns their earliest-expiring redeemable subscription at a restaurant.
func (l *Ledger) FindRedeemableSubscription(ctx context.Context, restaurantID uint64, query string) (SubscriptionView, error) {
	query = strings.TrimSpace(query)
	if restaurantID == 0 {
		return SubscriptionView{}, invalid("restaurant_id", "is required")
	}
	if query == "" {
		return SubscriptionView{}, invalid("query", "student id or phone is required")
	}
	conn := l.db.WithContext(ctx)

	var student models.User
	errFind := conn.Where("role = ? AND (CAST(id AS TEXT) = ? OR phone = ?)", models.RoleStudent, query, query).
		Order("id ASC").
		First(&student).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return SubscriptionView{}, ErrStudentNotFound
		}
		return SubscriptionView{}, classify("find student", errFind)
	}

	var subs []models.Subscription
	if errSubs := conn.Where("restaurant_id = ? AND student_id = ? AND status = ?", restaurantID, student.ID, models.SubscriptionActive).
		Order("expiry_date ASC, id ASC").
		Find(&subs).Error; errSubs != nil {
		return SubscriptionView{}, classify("find subscriptions", errSubs)
	}
	now := l.nowUTC()
	for _, sub := range subs {
		if sub.EffectiveStatus(now) != models.SubscriptionActive || sub.RemainingPlates() <= 0 {
			continue
		}
		used, errUsed := l.UsedMealIndices(ctx, sub.ID)
		if errUsed != nil {
			return SubscriptionView{}, errUsed
		}
		return newView(sub, used, now), nil
	}
	return SubscriptionView{}, ErrSubscriptionNotFound
}

func lockSubscription(tx *gorm.DB, subscriptionID uint64, scope Scope) (models.Subscription, error) {
	var sub models.Subscription
	q := scope.apply(lockForUpdate(tx).Where("id = ?", subscriptionID))
	if errFind := q.First(&sub).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Subscription{}, ErrSubscriptionNotFound
		}
		return models.Subscription{}, errFind
	}
	return sub, nil
}

// checkRedeemable rejects subscriptions that can no longer give out plates.
func checkRedeemable(sub models.Subscription, now time.Time) error {
	switch sub.Status {
	case models.SubscriptionActive:
	case models.SubscriptionDepleted:
		return ErrSubscriptionDepleted
	case models.SubscriptionExpired:
		return ErrSubscriptionExpired
	default:
		return ErrSubscriptionInactive
	}
	if now.After(sub.ExpiryDate) {
		return ErrSubscriptionExpired
	}
	return nil
}

func requireStudent(tx *gorm.DB, userID uint64, notFound error) error {
	var count int64
	if errCount := tx.Model(&models.User{}).Where("id = ? AND role = ?", userID, models.RoleStudent).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func expiryFrom(now time.Time, durationDays int) time.Time {
	return now.AddDate(0, 0, durationDays)
}
