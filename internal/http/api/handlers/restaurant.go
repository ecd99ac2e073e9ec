package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/ledger"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
)

// RestaurantHandler serves the restaurant owner console.
type RestaurantHandler struct {
	ledger   *ledger.Ledger
	accounts *accounts.Store
}

// NewRestaurantHandler constructs a RestaurantHandler.
func NewRestaurantHandler(l *ledger.Ledger, store *accounts.Store) *RestaurantHandler {
	return &RestaurantHandler{ledger: l, accounts: store}
}

// ownRestaurant resolves the caller's restaurant and writes an error when it fails.
func (h *RestaurantHandler) ownRestaurant(c *gin.Context) (models.Restaurant, bool) {
	restaurant, errFind := h.accounts.RestaurantForOwner(c.Request.Context(), getUserID(c))
	if errFind != nil {
		writeError(c, errFind, "load restaurant failed")
		return models.Restaurant{}, false
	}
	return restaurant, true
}

// approvedRestaurant is ownRestaurant restricted to approved venues.
func (h *RestaurantHandler) approvedRestaurant(c *gin.Context) (models.Restaurant, bool) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return restaurant, false
	}
	if restaurant.Status != models.RestaurantApproved {
		c.JSON(http.StatusForbidden, gin.H{"error": "restaurant is not approved"})
		return restaurant, false
	}
	return restaurant, true
}

// Subscribers lists every subscription held at the caller's restaurant.
func (h *RestaurantHandler) Subscribers(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	views, errList := h.ledger.ListRestaurantSubscribers(c.Request.Context(), restaurant.ID)
	if errList != nil {
		writeError(c, errList, "list subscribers failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subscriptionsJSON(views)})
}

// Usage lists meals served at the caller's restaurant, newest first.
// Optional filters: student_id, since (RFC 3339) and limit.
func (h *RestaurantHandler) Usage(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	filter := ledger.UsageFilter{RestaurantID: restaurant.ID, Limit: queryLimit(c)}
	if raw := strings.TrimSpace(c.Query("student_id")); raw != "" {
		studentID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
			return
		}
		filter.StudentID = studentID
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, errParse := time.Parse(time.RFC3339, raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		filter.Since = since
	}
	entries, errList := h.ledger.ListUsage(c.Request.Context(), filter)
	if errList != nil {
		writeError(c, errList, "list usage failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": usageLogJSON(entries)})
}

type searchSubscriberRequest struct {
	Query string `json:"query"` // Student id or phone.
}

// SearchSubscriber finds the redeemable subscription of a student.
func (h *RestaurantHandler) SearchSubscriber(c *gin.Context) {
	var body searchSubscriberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	view, errFind := h.ledger.FindRedeemableSubscription(c.Request.Context(), restaurant.ID, body.Query)
	if errFind != nil {
		writeError(c, errFind, "search subscriber failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": subscriptionJSON(view)})
}

type useMealRequest struct {
	SubscriptionID uint64 `json:"subscription_id"` // Subscription to draw from.
	Query          string `json:"query"`           // Student id or phone when subscription_id is unset.
	Plates         int    `json:"plates"`          // Plates served, default 1.
}

// UseMeal serves plates against a subscription held at the caller's restaurant.
func (h *RestaurantHandler) UseMeal(c *gin.Context) {
	var body useMealRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	restaurant, ok := h.approvedRestaurant(c)
	if !ok {
		return
	}
	if body.Plates == 0 {
		body.Plates = 1
	}
	ctx := c.Request.Context()
	subscriptionID := body.SubscriptionID
	if subscriptionID == 0 {
		view, errFind := h.ledger.FindRedeemableSubscription(ctx, restaurant.ID, body.Query)
		if errFind != nil {
			writeError(c, errFind, "use meal failed")
			return
		}
		subscriptionID = view.ID
	}
	scope := ledger.RestaurantScope(restaurant.ID)
	if _, errConsume := h.ledger.ConsumePlates(ctx, subscriptionID, scope, body.Plates); errConsume != nil {
		writeError(c, errConsume, "use meal failed")
		return
	}
	view, errView := h.ledger.GetSubscription(ctx, subscriptionID, scope)
	if errView != nil {
		writeError(c, errView, "load subscription failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": subscriptionJSON(view)})
}

// Orders lists orders placed at the caller's restaurant, optionally by status.
func (h *RestaurantHandler) Orders(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	filter := ledger.OrderFilter{RestaurantID: restaurant.ID, Limit: queryLimit(c)}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, errStatus := ledger.ParseOrderStatus(raw)
		if errStatus != nil {
			writeError(c, errStatus, "list orders failed")
			return
		}
		filter.Status = status
	}
	orders, errList := h.ledger.ListOrders(c.Request.Context(), filter)
	if errList != nil {
		writeError(c, errList, "list orders failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": ordersJSON(orders)})
}

type orderStatusRequest struct {
	Status string `json:"status"` // approved, rejected or served.
}

// UpdateOrderStatus moves an order through its lifecycle.
func (h *RestaurantHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, okID := parseIDParam(c, "id")
	if !okID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body orderStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status, errStatus := ledger.ParseOrderStatus(body.Status)
	if errStatus != nil {
		writeError(c, errStatus, "update order failed")
		return
	}
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	order, errUpdate := h.ledger.UpdateOrderStatus(c.Request.Context(), restaurant.ID, orderID, status)
	if errUpdate != nil {
		writeError(c, errUpdate, "update order failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": orderJSON(order)})
}

// ListMealPlans lists every plan of the caller's restaurant.
func (h *RestaurantHandler) ListMealPlans(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	plans, errList := h.accounts.ListMealPlans(c.Request.Context(), restaurant.ID, false)
	if errList != nil {
		writeError(c, errList, "list meal plans failed")
		return
	}
	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planJSON(plan))
	}
	c.JSON(http.StatusOK, gin.H{"meal_plans": out})
}

type mealPlanRequest struct {
	Name         string          `json:"name"`          // Display name.
	Description  string          `json:"description"`   // Optional details.
	TotalPlates  int             `json:"total_plates"`  // Plates per purchase.
	Price        decimal.Decimal `json:"price"`         // Purchase price.
	DurationDays int             `json:"duration_days"` // Validity in days.
	IsActive     *bool           `json:"is_active"`     // Defaults to true.
}

func (r mealPlanRequest) input() accounts.MealPlanInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return accounts.MealPlanInput{
		Name:         r.Name,
		Description:  r.Description,
		TotalPlates:  r.TotalPlates,
		Price:        r.Price,
		DurationDays: r.DurationDays,
		IsActive:     active,
	}
}

// CreateMealPlan adds a plan to the caller's restaurant.
func (h *RestaurantHandler) CreateMealPlan(c *gin.Context) {
	var body mealPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	plan, errCreate := h.accounts.CreateMealPlan(c.Request.Context(), restaurant.ID, body.input())
	if errCreate != nil {
		writeError(c, errCreate, "create meal plan failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meal_plan": planJSON(plan)})
}

// UpdateMealPlan replaces the editable fields of one plan.
func (h *RestaurantHandler) UpdateMealPlan(c *gin.Context) {
	planID, okID := parseIDParam(c, "id")
	if !okID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body mealPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	plan, errUpdate := h.accounts.UpdateMealPlan(c.Request.Context(), restaurant.ID, planID, body.input())
	if errUpdate != nil {
		writeError(c, errUpdate, "update meal plan failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal_plan": planJSON(plan)})
}
