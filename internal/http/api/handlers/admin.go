package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/ledger"
	"github.com/igifu/campus-meals/internal/models"
)

// AdminHandler serves platform administration.
type AdminHandler struct {
	ledger   *ledger.Ledger
	accounts *accounts.Store
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(l *ledger.Ledger, store *accounts.Store) *AdminHandler {
	return &AdminHandler{ledger: l, accounts: store}
}

// ListRestaurants lists restaurants of any status, optionally filtered.
func (h *AdminHandler) ListRestaurants(c *gin.Context) {
	rows, errList := h.accounts.ListRestaurants(c.Request.Context(), accounts.RestaurantFilter{
		Status:    models.RestaurantStatus(strings.TrimSpace(c.Query("status"))),
		Search:    strings.TrimSpace(c.Query("search")),
		WithPlans: true,
	})
	if errList != nil {
		writeError(c, errList, "list restaurants failed")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, restaurantJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{"restaurants": out})
}

type restaurantStatusRequest struct {
	Status string `json:"status"` // Pending, Approved or Suspended.
}

// SetRestaurantStatus approves or suspends a restaurant.
func (h *AdminHandler) SetRestaurantStatus(c *gin.Context) {
	restaurantID, okID := parseIDParam(c, "id")
	if !okID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body restaurantStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := models.RestaurantStatus(strings.TrimSpace(body.Status))
	if errUpdate := h.accounts.SetRestaurantStatus(c.Request.Context(), restaurantID, status); errUpdate != nil {
		writeError(c, errUpdate, "update restaurant failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": restaurantID, "status": status})
}

// Transactions lists journal rows across all users.
func (h *AdminHandler) Transactions(c *gin.Context) {
	filter := ledger.TransactionFilter{
		Type:        models.TransactionType(strings.TrimSpace(c.Query("type"))),
		ReferenceID: strings.TrimSpace(c.Query("reference_id")),
		Limit:       queryLimit(c),
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		userID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		filter.UserID = userID
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		offset, errParse := strconv.Atoi(raw)
		if errParse != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		filter.Offset = offset
	}
	rows, errList := h.ledger.ListTransactions(c.Request.Context(), filter)
	if errList != nil {
		writeError(c, errList, "list transactions failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactionsJSON(rows)})
}
