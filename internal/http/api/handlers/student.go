package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/ledger"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/igifu/campus-meals/internal/settings"
	"github.com/shopspring/decimal"
)

const dashboardRecentLimit = 10

// StudentHandler serves the student card, wallets and subscriptions.
type StudentHandler struct {
	ledger   *ledger.Ledger
	accounts *accounts.Store
}

// NewStudentHandler constructs a StudentHandler.
func NewStudentHandler(l *ledger.Ledger, store *accounts.Store) *StudentHandler {
	return &StudentHandler{ledger: l, accounts: store}
}

// Dashboard returns balances, subscriptions and recent activity.
func (h *StudentHandler) Dashboard(c *gin.Context) {
	studentID := getUserID(c)
	ctx := c.Request.Context()
	profile, errProfile := h.accounts.GetProfile(ctx, studentID)
	if errProfile != nil {
		writeError(c, errProfile, "load profile failed")
		return
	}
	subs, errSubs := h.ledger.ListStudentSubscriptions(ctx, studentID)
	if errSubs != nil {
		writeError(c, errSubs, "list subscriptions failed")
		return
	}
	orders, errOrders := h.ledger.ListOrders(ctx, ledger.OrderFilter{StudentID: studentID, Limit: dashboardRecentLimit})
	if errOrders != nil {
		writeError(c, errOrders, "list orders failed")
		return
	}
	txs, errTxs := h.ledger.ListTransactions(ctx, ledger.TransactionFilter{UserID: studentID, Limit: dashboardRecentLimit})
	if errTxs != nil {
		writeError(c, errTxs, "list transactions failed")
		return
	}
	usage, errUsage := h.ledger.ListUsage(ctx, ledger.UsageFilter{StudentID: studentID, Limit: dashboardRecentLimit})
	if errUsage != nil {
		writeError(c, errUsage, "list usage failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallets":       balancesJSON(ledger.Balances{Meal: profile.MealWalletBalance, Flexie: profile.FlexieWalletBalance}),
		"card_locked":   profile.CardLocked,
		"subscriptions": subscriptionsJSON(subs),
		"orders":        ordersJSON(orders),
		"transactions":  transactionsJSON(txs),
		"usage":         usageLogJSON(usage),
	})
}

type subscribeRequest struct {
	PlanID        uint64 `json:"plan_id"`        // Meal plan to buy.
	PaymentMethod string `json:"payment_method"` // e.g. momo, cash.
	PaymentPhone  string `json:"payment_phone"`  // Paying phone number.
}

// Subscribe buys a meal plan.
func (h *StudentHandler) Subscribe(c *gin.Context) {
	var body subscribeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sub, errSub := h.ledger.SubscribeToPlan(c.Request.Context(), ledger.SubscribeParams{
		StudentID:     getUserID(c),
		PlanID:        body.PlanID,
		PaymentMethod: body.PaymentMethod,
		PaymentPhone:  body.PaymentPhone,
	})
	if errSub != nil {
		writeError(c, errSub, "subscribe failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": plainSubscriptionJSON(sub, nil)})
}

type redeemRequest struct {
	SubscriptionID uint64 `json:"subscription_id"` // Subscription to draw from.
	Plates         int    `json:"plates"`          // Plates to redeem, default 1.
}

// Redeem consumes plates from one of the student's own subscriptions.
func (h *StudentHandler) Redeem(c *gin.Context) {
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Plates == 0 {
		body.Plates = 1
	}
	scope := ledger.StudentScope(getUserID(c))
	ctx := c.Request.Context()
	if _, errConsume := h.ledger.ConsumePlates(ctx, body.SubscriptionID, scope, body.Plates); errConsume != nil {
		writeError(c, errConsume, "redeem failed")
		return
	}
	view, errView := h.ledger.GetSubscription(ctx, body.SubscriptionID, scope)
	if errView != nil {
		writeError(c, errView, "load subscription failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": subscriptionJSON(view)})
}

type placeOrderRequest struct {
	RestaurantID   uint64  `json:"restaurant_id"`   // Serving restaurant.
	SubscriptionID *uint64 `json:"subscription_id"` // Optional subscription to charge.
	Plates         int     `json:"plates"`          // Plates ordered.
}

// PlaceOrder creates a pending order.
func (h *StudentHandler) PlaceOrder(c *gin.Context) {
	var body placeOrderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	order, errOrder := h.ledger.PlaceOrder(c.Request.Context(), ledger.PlaceOrderParams{
		StudentID:      getUserID(c),
		RestaurantID:   body.RestaurantID,
		SubscriptionID: body.SubscriptionID,
		Plates:         body.Plates,
	})
	if errOrder != nil {
		writeError(c, errOrder, "place order failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": orderJSON(order)})
}

type topupRequest struct {
	Wallet        string          `json:"wallet"`         // meal or flexie.
	Amount        decimal.Decimal `json:"amount"`         // Positive amount.
	PaymentMethod string          `json:"payment_method"` // Funding source.
}

// Topup credits one wallet.
func (h *StudentHandler) Topup(c *gin.Context) {
	var body topupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	wallet, errWallet := ledger.ParseWallet(body.Wallet)
	if errWallet != nil {
		writeError(c, errWallet, "topup failed")
		return
	}
	method := strings.TrimSpace(body.PaymentMethod)
	if method == "" {
		method = settings.DefaultTopupMethod
	}
	balances, errCredit := h.ledger.CreditWallet(c.Request.Context(), getUserID(c), wallet, body.Amount, method)
	if errCredit != nil {
		writeError(c, errCredit, "topup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": balancesJSON(balances)})
}

type exchangeRequest struct {
	From   string          `json:"from"`   // Source wallet.
	To     string          `json:"to"`     // Destination wallet.
	Amount decimal.Decimal `json:"amount"` // Positive amount.
}

// Exchange moves money between the student's wallets.
func (h *StudentHandler) Exchange(c *gin.Context) {
	var body exchangeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	from, errFrom := ledger.ParseWallet(body.From)
	if errFrom != nil {
		writeError(c, errFrom, "exchange failed")
		return
	}
	to, errTo := ledger.ParseWallet(body.To)
	if errTo != nil {
		writeError(c, errTo, "exchange failed")
		return
	}
	balances, errExchange := h.ledger.ExchangeWallets(c.Request.Context(), getUserID(c), from, to, body.Amount)
	if errExchange != nil {
		writeError(c, errExchange, "exchange failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": balancesJSON(balances)})
}

type cardLockRequest struct {
	Locked *bool `json:"locked"` // Desired card state.
}

// SetCardLock locks or unlocks the student's card.
func (h *StudentHandler) SetCardLock(c *gin.Context) {
	var body cardLockRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Locked == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errLock := h.accounts.SetCardLock(c.Request.Context(), getUserID(c), *body.Locked); errLock != nil {
		writeError(c, errLock, "update card lock failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"card_locked": *body.Locked})
}

type shareRequest struct {
	SubscriptionID uint64 `json:"subscription_id"` // Sender subscription.
	Recipient      string `json:"recipient"`       // Recipient student id or phone.
	Meals          int    `json:"meals"`           // Plates to give away.
}

// Share gives unused plates to another student.
func (h *StudentHandler) Share(c *gin.Context) {
	var body shareRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()
	recipient, errFind := h.accounts.FindStudent(ctx, body.Recipient)
	if errFind != nil {
		writeError(c, errFind, "share failed")
		return
	}
	result, errShare := h.ledger.ShareMeals(ctx, ledger.ShareParams{
		SenderID:       getUserID(c),
		SubscriptionID: body.SubscriptionID,
		RecipientID:    recipient.ID,
		Meals:          body.Meals,
	})
	if errShare != nil {
		writeError(c, errShare, "share failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sender":    plainSubscriptionJSON(result.Sender, nil),
		"recipient": plainSubscriptionJSON(result.Recipient, nil),
	})
}

// Transactions lists the caller's journal rows.
func (h *StudentHandler) Transactions(c *gin.Context) {
	rows, errList := h.ledger.ListTransactions(c.Request.Context(), ledger.TransactionFilter{
		UserID: getUserID(c),
		Type:   models.TransactionType(strings.TrimSpace(c.Query("type"))),
		Limit:  queryLimit(c),
	})
	if errList != nil {
		writeError(c, errList, "list transactions failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactionsJSON(rows)})
}
