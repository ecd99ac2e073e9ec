// Package api wires the HTTP routes, middleware and handlers.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/config"
	"github.com/igifu/campus-meals/internal/http/api/handlers"
	"github.com/igifu/campus-meals/internal/ledger"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/igifu/campus-meals/internal/ratelimit"
	"gorm.io/gorm"
)

// Deps carries the collaborators shared by every route.
type Deps struct {
	DB       *gorm.DB
	Ledger   *ledger.Ledger
	Accounts *accounts.Store
	JWT      config.JWTConfig
	Limiter  *ratelimit.Manager
	Now      func() time.Time
}

// NewRouter builds a gin engine with recovery, request logging and all routes.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), requestLogMiddleware())
	RegisterRoutes(r, deps)
	return r
}

// RegisterRoutes registers public, student, restaurant and admin routes.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.Ledger == nil || deps.Accounts == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(deps.Accounts, deps.JWT, deps.Now)
	apiGroup.POST("/auth/register", authHandler.Register)
	apiGroup.POST("/auth/login", authHandler.Login)

	publicHandler := handlers.NewPublicHandler(deps.Accounts)
	apiGroup.GET("/restaurants", publicHandler.ListRestaurants)

	authed := apiGroup.Group("")
	authed.Use(authMiddleware(deps.Accounts, deps.JWT))

	studentHandler := handlers.NewStudentHandler(deps.Ledger, deps.Accounts)
	authed.GET("/transactions", studentHandler.Transactions)

	student := authed.Group("/student")
	student.Use(requireRole(models.RoleStudent))
	student.GET("/dashboard", studentHandler.Dashboard)
	student.PATCH("/card-lock", rateLimitMiddleware(deps.Limiter, "card"), studentHandler.SetCardLock)

	card := student.Group("")
	card.Use(cardUnlockedMiddleware(deps.Accounts))
	card.POST("/subscribe", rateLimitMiddleware(deps.Limiter, "subscriptions"), studentHandler.Subscribe)
	card.POST("/subscriptions/share", rateLimitMiddleware(deps.Limiter, "subscriptions"), studentHandler.Share)
	card.POST("/redeem", rateLimitMiddleware(deps.Limiter, "meals"), studentHandler.Redeem)
	card.POST("/orders", rateLimitMiddleware(deps.Limiter, "orders"), studentHandler.PlaceOrder)
	card.POST("/wallets/topup", rateLimitMiddleware(deps.Limiter, "wallets"), studentHandler.Topup)
	card.POST("/wallets/exchange", rateLimitMiddleware(deps.Limiter, "wallets"), studentHandler.Exchange)

	restaurantHandler := handlers.NewRestaurantHandler(deps.Ledger, deps.Accounts)
	restaurant := authed.Group("/restaurant")
	restaurant.Use(requireRole(models.RoleRestaurant))
	restaurant.GET("/subscribers", restaurantHandler.Subscribers)
	restaurant.POST("/subscribers/search", restaurantHandler.SearchSubscriber)
	restaurant.POST("/subscribers/use-meal", rateLimitMiddleware(deps.Limiter, "meals"), restaurantHandler.UseMeal)
	restaurant.GET("/usage", restaurantHandler.Usage)
	restaurant.GET("/orders", restaurantHandler.Orders)
	restaurant.PATCH("/orders/:id/status", rateLimitMiddleware(deps.Limiter, "orders"), restaurantHandler.UpdateOrderStatus)
	restaurant.GET("/meal-plans", restaurantHandler.ListMealPlans)
	restaurant.POST("/meal-plans", restaurantHandler.CreateMealPlan)
	restaurant.PUT("/meal-plans/:id", restaurantHandler.UpdateMealPlan)

	adminHandler := handlers.NewAdminHandler(deps.Ledger, deps.Accounts)
	admin := authed.Group("/admin")
	admin.Use(requireRole(models.RoleAdmin))
	admin.GET("/restaurants", adminHandler.ListRestaurants)
	admin.PATCH("/restaurants/:id/status", adminHandler.SetRestaurantStatus)
	admin.GET("/transactions", adminHandler.Transactions)
}
