package ratelimit

import (
	"strings"

	"github.com/igifu/campus-meals/internal/models"
)

// Resolve picks the limit for a request by role and route group.
// Admin requests are never limited. Ledger-mutating route groups are limited
// per route so that a burst of top-ups does not block meal redemption.
func Resolve(role models.Role, route string, cfg SettingsConfig) Decision {
	if cfg.Limit <= 0 || role == models.RoleAdmin || !role.Valid() {
		return Decision{Scope: ScopeNone}
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return Decision{Limit: cfg.Limit, Scope: ScopeUser}
	}
	return Decision{Limit: cfg.Limit, Scope: ScopeRoute, Route: route}
}
