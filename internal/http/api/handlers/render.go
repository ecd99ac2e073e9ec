package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/ledger"
	"github.com/igifu/campus-meals/internal/models"
)

func userJSON(u models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"phone":      u.Phone,
		"role":       u.Role,
		"active":     u.Active,
		"created_at": u.CreatedAt,
	}
}

func balancesJSON(b ledger.Balances) gin.H {
	return gin.H{
		"meal_wallet_balance":   b.Meal,
		"flexie_wallet_balance": b.Flexie,
	}
}

func subscriptionJSON(v ledger.SubscriptionView) gin.H {
	out := gin.H{
		"id":               v.ID,
		"student_id":       v.StudentID,
		"restaurant_id":    v.RestaurantID,
		"plan_id":          v.PlanID,
		"total_plates":     v.TotalPlates,
		"used_plates":      v.UsedPlates,
		"remaining_plates": v.RemainingPlates,
		"used_meals":       v.UsedMeals,
		"price_paid":       v.PricePaid,
		"duration_days":    v.DurationDays,
		"payment_method":   v.PaymentMethod,
		"status":           v.EffectiveStatus,
		"expiry_date":      v.ExpiryDate,
		"created_at":       v.CreatedAt,
	}
	if v.TransferredFromID != nil {
		out["transferred_from_id"] = *v.TransferredFromID
	}
	return out
}

// plainSubscriptionJSON renders a subscription returned by a mutation.
func plainSubscriptionJSON(s models.Subscription, usedMeals []int) gin.H {
	if usedMeals == nil {
		usedMeals = []int{}
	}
	return subscriptionJSON(ledger.SubscriptionView{
		Subscription:    s,
		EffectiveStatus: s.Status,
		RemainingPlates: s.RemainingPlates(),
		UsedMeals:       usedMeals,
	})
}

func orderJSON(o models.Order) gin.H {
	return gin.H{
		"id":              o.ID,
		"student_id":      o.StudentID,
		"restaurant_id":   o.RestaurantID,
		"subscription_id": o.SubscriptionID,
		"plates":          o.Plates,
		"charged_amount":  o.ChargedAmount,
		"status":          o.Status,
		"created_at":      o.CreatedAt,
		"updated_at":      o.UpdatedAt,
	}
}

func transactionJSON(t models.Transaction) gin.H {
	out := gin.H{
		"id":             t.ID,
		"user_id":        t.UserID,
		"amount":         t.Amount,
		"type":           t.Type,
		"payment_method": t.PaymentMethod,
		"status":         t.Status,
		"reference_id":   t.ReferenceID,
		"created_at":     t.CreatedAt,
	}
	if len(t.Metadata) > 0 {
		out["metadata"] = json.RawMessage(t.Metadata)
	}
	return out
}

func planJSON(p models.MealPlan) gin.H {
	return gin.H{
		"id":            p.ID,
		"restaurant_id": p.RestaurantID,
		"name":          p.Name,
		"description":   p.Description,
		"total_plates":  p.TotalPlates,
		"price":         p.Price,
		"duration_days": p.DurationDays,
		"is_active":     p.IsActive,
	}
}

func restaurantJSON(r models.Restaurant) gin.H {
	plans := make([]gin.H, 0, len(r.MealPlans))
	for _, plan := range r.MealPlans {
		plans = append(plans, planJSON(plan))
	}
	return gin.H{
		"id":          r.ID,
		"owner_id":    r.OwnerID,
		"name":        r.Name,
		"location":    r.Location,
		"description": r.Description,
		"status":      r.Status,
		"meal_plans":  plans,
		"created_at":  r.CreatedAt,
	}
}

func transactionsJSON(rows []models.Transaction) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, transactionJSON(row))
	}
	return out
}

func subscriptionsJSON(views []ledger.SubscriptionView) []gin.H {
	out := make([]gin.H, 0, len(views))
	for _, view := range views {
		out = append(out, subscriptionJSON(view))
	}
	return out
}

func ordersJSON(orders []models.Order) []gin.H {
	out := make([]gin.H, 0, len(orders))
	for _, order := range orders {
		out = append(out, orderJSON(order))
	}
	return out
}

func usageJSON(entry models.MealUsageLog) gin.H {
	return gin.H{
		"id":              entry.ID,
		"subscription_id": entry.SubscriptionID,
		"meal_index":      entry.MealIndex,
		"student_id":      entry.StudentID,
		"restaurant_id":   entry.RestaurantID,
		"used_at":         entry.UsedAt,
	}
}

func usageLogJSON(entries []models.MealUsageLog) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, usageJSON(entry))
	}
	return out
}
