package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/config"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/igifu/campus-meals/internal/security"
	log "github.com/sirupsen/logrus"
)

// AuthHandler registers accounts and issues bearer tokens.
type AuthHandler struct {
	accounts *accounts.Store
	jwt      config.JWTConfig
	now      func() time.Time
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(store *accounts.Store, jwtCfg config.JWTConfig, now func() time.Time) *AuthHandler {
	if now == nil {
		now = time.Now
	}
	return &AuthHandler{accounts: store, jwt: jwtCfg, now: now}
}

type registerRequest struct {
	Username       string `json:"username"`        // Login name.
	Email          string `json:"email"`           // Contact email.
	Phone          string `json:"phone"`           // Mobile number.
	Password       string `json:"password"`        // Plain password.
	Role           string `json:"role"`            // student or restaurant.
	RestaurantName string `json:"restaurant_name"` // Required for restaurant accounts.
	Location       string `json:"location"`        // Restaurant location.
	Description    string `json:"description"`     // Restaurant description.
}

// Register creates a student or restaurant account.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(body.Role)))
	if role == "" {
		role = models.RoleStudent
	}
	if role != models.RoleStudent && role != models.RoleRestaurant {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student or restaurant"})
		return
	}
	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		if errors.Is(errHash, security.ErrWeakPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errHash.Error()})
			return
		}
		log.WithError(errHash).Error("hash password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}
	in := accounts.NewUser{
		Username:     body.Username,
		Email:        body.Email,
		Phone:        body.Phone,
		PasswordHash: hash,
	}

	ctx := c.Request.Context()
	if role == models.RoleStudent {
		user, errCreate := h.accounts.CreateStudent(ctx, in)
		if errCreate != nil {
			writeError(c, errCreate, "register failed")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": userJSON(user)})
		return
	}
	user, restaurant, errCreate := h.accounts.CreateRestaurantOwner(ctx, in, accounts.NewRestaurant{
		Name:        body.RestaurantName,
		Location:    body.Location,
		Description: body.Description,
	})
	if errCreate != nil {
		writeError(c, errCreate, "register failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": userJSON(user), "restaurant": restaurantJSON(restaurant)})
}

type loginRequest struct {
	Login    string `json:"login"`    // Username or email.
	Password string `json:"password"` // Plain password.
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Login) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
		return
	}
	user, errFind := h.accounts.FindUserByLogin(c.Request.Context(), body.Login)
	if errFind != nil && !errors.Is(errFind, accounts.ErrNotFound) {
		writeError(c, errFind, "login failed")
		return
	}
	if errFind != nil || !security.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}
	token, errToken := security.IssueToken(h.jwt.Secret, user, h.jwt.Expiry, h.now())
	if errToken != nil {
		log.WithError(errToken).Error("issue token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userJSON(user)})
}
