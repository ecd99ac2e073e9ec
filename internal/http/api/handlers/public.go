package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/models"
)

// PublicHandler serves unauthenticated catalogue reads.
type PublicHandler struct {
	accounts *accounts.Store
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(store *accounts.Store) *PublicHandler {
	return &PublicHandler{accounts: store}
}

// ListRestaurants returns approved restaurants with their active meal plans.
func (h *PublicHandler) ListRestaurants(c *gin.Context) {
	rows, errList := h.accounts.ListRestaurants(c.Request.Context(), accounts.RestaurantFilter{
		Status:      models.RestaurantApproved,
		Search:      strings.TrimSpace(c.Query("search")),
		WithPlans:   true,
		ActivePlans: true,
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
