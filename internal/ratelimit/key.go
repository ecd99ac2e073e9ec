package ratelimit

import "fmt"

// KeyForDecision builds a limiter key for the resolved scope.
func KeyForDecision(userID uint64, decision Decision) string {
	if userID == 0 || decision.Limit <= 0 {
		return ""
	}
	switch decision.Scope {
	case ScopeRoute:
		if decision.Route == "" {
			return fmt.Sprintf("u:%d", userID)
		}
		return fmt.Sprintf("u:%d:r:%s", userID, decision.Route)
	case ScopeUser:
		return fmt.Sprintf("u:%d", userID)
	default:
		return ""
	}
}
