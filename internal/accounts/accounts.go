// Package accounts stores users, student profiles, restaurants and meal plans.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/igifu/campus-meals/internal/db"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the requested account record does not exist.
	ErrNotFound = errors.New("accounts: not found")
	// ErrDuplicate indicates a username, email or owner is already registered.
	ErrDuplicate = errors.New("accounts: already exists")
	// ErrInvalidInput indicates a rejected field value.
	ErrInvalidInput = errors.New("accounts: invalid input")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Store persists account records.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store.
func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// NewUser holds the common fields of a new account. Password must already be hashed.
type NewUser struct {
	Username     string
	Email        string
	Phone        string
	PasswordHash string
}

func (u NewUser) normalize() (NewUser, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Phone = strings.TrimSpace(u.Phone)
	if u.Username == "" {
		return u, invalidf("username is required")
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return u, invalidf("email is invalid")
	}
	if u.PasswordHash == "" {
		return u, invalidf("password is required")
	}
	return u, nil
}

func (u NewUser) model(role models.Role) models.User {
	return models.User{
		Username: u.Username,
		Email:    u.Email,
		Phone:    u.Phone,
		Password: u.PasswordHash,
		Role:     role,
		Active:   true,
	}
}

// CreateStudent creates a student account with empty, unlocked wallets.
func (s *Store) CreateStudent(ctx context.Context, in NewUser) (models.User, error) {
	in, errNormalize := in.normalize()
	if errNormalize != nil {
		return models.User{}, errNormalize
	}
	user := in.model(models.RoleStudent)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		profile := models.StudentProfile{
			UserID:              user.ID,
			MealWalletBalance:   decimal.Zero,
			FlexieWalletBalance: decimal.Zero,
			CardLocked:          false,
		}
		return tx.Create(&profile).Error
	})
	if errTx != nil {
		return models.User{}, translate("create student", errTx)
	}
	return user, nil
}

// NewRestaurant describes the venue registered with a restaurant owner.
type NewRestaurant struct {
	Name        string
	Location    string
	Description string
}

// CreateRestaurantOwner creates a restaurant account and its pending restaurant.
func (s *Store) CreateRestaurantOwner(ctx context.Context, in NewUser, venue NewRestaurant) (models.User, models.Restaurant, error) {
	in, errNormalize := in.normalize()
	if errNormalize != nil {
		return models.User{}, models.Restaurant{}, errNormalize
	}
	venue.Name = strings.TrimSpace(venue.Name)
	if venue.Name == "" {
		return models.User{}, models.Restaurant{}, invalidf("restaurant name is required")
	}
	user := in.model(models.RoleRestaurant)
	var restaurant models.Restaurant
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		restaurant = models.Restaurant{
			OwnerID:     user.ID,
			Name:        venue.Name,
			Location:    strings.TrimSpace(venue.Location),
			Description: strings.TrimSpace(venue.Description),
			Status:      models.RestaurantPending,
		}
		return tx.Create(&restaurant).Error
	})
	if errTx != nil {
		return models.User{}, models.Restaurant{}, translate("create restaurant", errTx)
	}
	return user, restaurant, nil
}

// EnsureAdmin creates the admin account when no admin exists yet.
// It reports whether an account was created.
func (s *Store) EnsureAdmin(ctx context.Context, in NewUser) (bool, error) {
	in, errNormalize := in.normalize()
	if errNormalize != nil {
		return false, errNormalize
	}
	created := false
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return nil
		}
		admin := in.model(models.RoleAdmin)
		if errCreate := tx.Create(&admin).Error; errCreate != nil {
			return errCreate
		}
		created = true
		return nil
	})
	if errTx != nil {
		return false, translate("ensure admin", errTx)
	}
	return created, nil
}

// HasAdmin reports whether at least one admin account exists.
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("accounts: count admins: %w", errCount)
	}
	return count > 0, nil
}

// FindUserByLogin finds an account by username or email.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return models.User{}, ErrNotFound
	}
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	if errFind != nil {
		return models.User{}, translate("find user", errFind)
	}
	return user, nil
}

// GetUser loads an account by id.
func (s *Store) GetUser(ctx context.Context, id uint64) (models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		return models.User{}, translate("get user", errFind)
	}
	return user, nil
}

// FindStudent resolves a student by numeric id or phone number.
func (s *Store) FindStudent(ctx context.Context, query string) (models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.User{}, ErrNotFound
	}
	q := s.db.WithContext(ctx).Where("role = ?", models.RoleStudent)
	if id, errParse := strconv.ParseUint(query, 10, 64); errParse == nil {
		q = q.Where("id = ? OR phone = ?", id, query)
	} else {
		q = q.Where("phone = ?", query)
	}
	var user models.User
	if errFind := q.Order("id ASC").First(&user).Error; errFind != nil {
		return models.User{}, translate("find student", errFind)
	}
	return user, nil
}

// GetProfile loads a student's wallet profile.
func (s *Store) GetProfile(ctx context.Context, studentID uint64) (models.StudentProfile, error) {
	var profile models.StudentProfile
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", studentID).First(&profile).Error; errFind != nil {
		return models.StudentProfile{}, translate("get profile", errFind)
	}
	return profile, nil
}

// SetCardLock locks or unlocks a student's card.
func (s *Store) SetCardLock(ctx context.Context, studentID uint64, locked bool) error {
	res := s.db.WithContext(ctx).Model(&models.StudentProfile{}).
		Where("user_id = ?", studentID).
		Updates(map[string]any{"card_locked": locked, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("accounts: set card lock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestaurantForOwner returns the restaurant owned by a restaurant account.
func (s *Store) RestaurantForOwner(ctx context.Context, ownerID uint64) (models.Restaurant, error) {
	var restaurant models.Restaurant
	if errFind := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&restaurant).Error; errFind != nil {
		return models.Restaurant{}, translate("restaurant for owner", errFind)
	}
	return restaurant, nil
}

// RestaurantFilter narrows ListRestaurants results.
type RestaurantFilter struct {
	Status      models.RestaurantStatus
	Search      string
	WithPlans   bool
	ActivePlans bool
}

// ListRestaurants returns restaurants ordered by name.
func (s *Store) ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]models.Restaurant, error) {
	q := s.db.WithContext(ctx).Model(&models.Restaurant{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + db.NormalizeLikePattern(s.db, search) + "%"
		q = q.Where(db.CaseInsensitiveLikeExpr(s.db, "name"), pattern)
	}
	if filter.WithPlans {
		if filter.ActivePlans {
			q = q.Preload("MealPlans", "is_active = ?", true)
		} else {
			q = q.Preload("MealPlans")
		}
	}
	var restaurants []models.Restaurant
	if errFind := q.Order("name ASC, id ASC").Find(&restaurants).Error; errFind != nil {
		return nil, fmt.Errorf("accounts: list restaurants: %w", errFind)
	}
	return restaurants, nil
}

// SetRestaurantStatus changes a restaurant's approval status.
func (s *Store) SetRestaurantStatus(ctx context.Context, restaurantID uint64, status models.RestaurantStatus) error {
	switch status {
	case models.RestaurantPending, models.RestaurantApproved, models.RestaurantSuspended:
	default:
		return invalidf("unknown restaurant status %q", status)
	}
	res := s.db.WithContext(ctx).Model(&models.Restaurant{}).
		Where("id = ?", restaurantID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("accounts: set restaurant status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MealPlanInput holds editable meal plan fields.
type MealPlanInput struct {
	Name         string
	Description  string
	TotalPlates  int
	Price        decimal.Decimal
	DurationDays int
	IsActive     bool
}

func (in MealPlanInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalidf("plan name is required")
	case in.TotalPlates <= 0:
		return invalidf("total plates must be positive")
	case in.Price.IsNegative():
		return invalidf("price must not be negative")
	case in.DurationDays <= 0:
		return invalidf("duration days must be positive")
	}
	return nil
}

// CreateMealPlan adds a plan to a restaurant.
func (s *Store) CreateMealPlan(ctx context.Context, restaurantID uint64, in MealPlanInput) (models.MealPlan, error) {
	if errValidate := in.validate(); errValidate != nil {
		return models.MealPlan{}, errValidate
	}
	plan := models.MealPlan{
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		TotalPlates:  in.TotalPlates,
		Price:        in.Price.Round(2),
		DurationDays: in.DurationDays,
		IsActive:     in.IsActive,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&plan).Error; errCreate != nil {
			return errCreate
		}
		// default:true on is_active swallows an explicit false on insert.
		if !in.IsActive {
			return tx.Model(&plan).Update("is_active", false).Error
		}
		return nil
	})
	if errTx != nil {
		return models.MealPlan{}, translate("create meal plan", errTx)
	}
	return plan, nil
}

// UpdateMealPlan replaces the editable fields of a restaurant's plan.
func (s *Store) UpdateMealPlan(ctx context.Context, restaurantID, planID uint64, in MealPlanInput) (models.MealPlan, error) {
	if errValidate := in.validate(); errValidate != nil {
		return models.MealPlan{}, errValidate
	}
	res := s.db.WithContext(ctx).Model(&models.MealPlan{}).
		Where("id = ? AND restaurant_id = ?", planID, restaurantID).
		Updates(map[string]any{
			"name":          strings.TrimSpace(in.Name),
			"description":   strings.TrimSpace(in.Description),
			"total_plates":  in.TotalPlates,
			"price":         in.Price.Round(2),
			"duration_days": in.DurationDays,
			"is_active":     in.IsActive,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return models.MealPlan{}, fmt.Errorf("accounts: update meal plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.MealPlan{}, ErrNotFound
	}
	var plan models.MealPlan
	if errFind := s.db.WithContext(ctx).First(&plan, planID).Error; errFind != nil {
		return models.MealPlan{}, translate("reload meal plan", errFind)
	}
	return plan, nil
}

// ListMealPlans returns a restaurant's plans, optionally only active ones.
func (s *Store) ListMealPlans(ctx context.Context, restaurantID uint64, activeOnly bool) ([]models.MealPlan, error) {
	q := s.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var plans []models.MealPlan
	if errFind := q.Order("price ASC, id ASC").Find(&plans).Error; errFind != nil {
		return nil, fmt.Errorf("accounts: list meal plans: %w", errFind)
	}
	return plans, nil
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrDuplicate, op)
	default:
		return fmt.Errorf("accounts: %s: %w", op, err)
	}
}
