package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// getUserID returns the authenticated user id, or 0 when absent.
func getUserID(c *gin.Context) uint64 {
	raw, ok := c.Get(ContextUserID)
	if !ok {
		return 0
	}
	id, _ := raw.(uint64)
	return id
}

func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, errParse := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if errParse != nil || limit <= 0 {
		return 0
	}
	return limit
}
