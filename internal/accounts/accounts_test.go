package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/igifu/campus-meals/internal/db"
	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "accounts-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewStore(conn)
}

func TestCreateStudentCreatesUnlockedEmptyProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateStudent(ctx, NewUser{Username: "aline", Email: "Aline@Campus.test", Phone: "0788111111", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if user.Role != models.RoleStudent || user.Email != "aline@campus.test" {
		t.Fatalf("unexpected user: %+v", user)
	}
	profile, err := store.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.CardLocked || !profile.MealWalletBalance.IsZero() || !profile.FlexieWalletBalance.IsZero() {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	_, err = store.CreateStudent(ctx, NewUser{Username: "aline", Email: "other@campus.test", PasswordHash: "hash"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	_, err = store.CreateStudent(ctx, NewUser{Username: "eric", Email: "not-an-email", PasswordHash: "hash"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCardLockToggle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, err := store.CreateStudent(ctx, NewUser{Username: "aline", Email: "aline@campus.test", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	if errLock := store.SetCardLock(ctx, user.ID, true); errLock != nil {
		t.Fatalf("lock: %v", errLock)
	}
	profile, _ := store.GetProfile(ctx, user.ID)
	if !profile.CardLocked {
		t.Fatalf("expected card locked")
	}
	if errLock := store.SetCardLock(ctx, 999, true); !errors.Is(errLock, ErrNotFound) {
		t.Fatalf("expected not found, got %v", errLock)
	}
}

func TestFindStudentByIDOrPhone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, err := store.CreateStudent(ctx, NewUser{Username: "aline", Email: "aline@campus.test", Phone: "0788111111", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if _, _, errOwner := store.CreateRestaurantOwner(ctx, NewUser{Username: "chef", Email: "chef@food.test", Phone: "0788999999", PasswordHash: "hash"}, NewRestaurant{Name: "Inyange"}); errOwner != nil {
		t.Fatalf("create owner: %v", errOwner)
	}

	for _, query := range []string{"1", "0788111111", " 0788111111 "} {
		found, errFind := store.FindStudent(ctx, query)
		if errFind != nil {
			t.Fatalf("find %q: %v", query, errFind)
		}
		if found.ID != user.ID {
			t.Fatalf("find %q: expected %d, got %d", query, user.ID, found.ID)
		}
	}
	if _, errFind := store.FindStudent(ctx, "0788999999"); !errors.Is(errFind, ErrNotFound) {
		t.Fatalf("restaurant phone must not resolve to a student, got %v", errFind)
	}
}

func TestRestaurantLifecycleAndPlans(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner, restaurant, err := store.CreateRestaurantOwner(ctx, NewUser{Username: "chef", Email: "chef@food.test", PasswordHash: "hash"}, NewRestaurant{Name: "Inyange", Location: "Huye"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if restaurant.Status != models.RestaurantPending {
		t.Fatalf("expected pending restaurant, got %s", restaurant.Status)
	}
	mine, err := store.RestaurantForOwner(ctx, owner.ID)
	if err != nil || mine.ID != restaurant.ID {
		t.Fatalf("restaurant for owner: %v %+v", err, mine)
	}

	active, err := store.CreateMealPlan(ctx, restaurant.ID, MealPlanInput{Name: "Monthly", TotalPlates: 60, Price: decimal.NewFromInt(30000), DurationDays: 30, IsActive: true})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if _, errPlan := store.CreateMealPlan(ctx, restaurant.ID, MealPlanInput{Name: "Retired", TotalPlates: 10, Price: decimal.NewFromInt(6000), DurationDays: 7, IsActive: false}); errPlan != nil {
		t.Fatalf("create inactive plan: %v", errPlan)
	}
	if _, errPlan := store.CreateMealPlan(ctx, restaurant.ID, MealPlanInput{Name: "Broken", TotalPlates: 0, DurationDays: 7}); !errors.Is(errPlan, ErrInvalidInput) {
		t.Fatalf("expected invalid plan, got %v", errPlan)
	}

	plans, err := store.ListMealPlans(ctx, restaurant.ID, true)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 1 || plans[0].ID != active.ID {
		t.Fatalf("expected only the active plan, got %+v", plans)
	}

	updated, err := store.UpdateMealPlan(ctx, restaurant.ID, active.ID, MealPlanInput{Name: "Monthly+", TotalPlates: 62, Price: decimal.NewFromInt(31000), DurationDays: 30, IsActive: true})
	if err != nil {
		t.Fatalf("update plan: %v", err)
	}
	if updated.TotalPlates != 62 || updated.Name != "Monthly+" {
		t.Fatalf("unexpected updated plan: %+v", updated)
	}
	if _, errUpdate := store.UpdateMealPlan(ctx, restaurant.ID+1, active.ID, MealPlanInput{Name: "x", TotalPlates: 1, DurationDays: 1}); !errors.Is(errUpdate, ErrNotFound) {
		t.Fatalf("expected not found for foreign restaurant, got %v", errUpdate)
	}

	if errStatus := store.SetRestaurantStatus(ctx, restaurant.ID, models.RestaurantApproved); errStatus != nil {
		t.Fatalf("approve: %v", errStatus)
	}
	approved, err := store.ListRestaurants(ctx, RestaurantFilter{Status: models.RestaurantApproved, Search: "inya", WithPlans: true, ActivePlans: true})
	if err != nil {
		t.Fatalf("list restaurants: %v", err)
	}
	if len(approved) != 1 || len(approved[0].MealPlans) != 1 {
		t.Fatalf("expected one approved restaurant with one active plan, got %+v", approved)
	}
	if errStatus := store.SetRestaurantStatus(ctx, restaurant.ID, "Closed"); !errors.Is(errStatus, ErrInvalidInput) {
		t.Fatalf("expected invalid status, got %v", errStatus)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	has, err := store.HasAdmin(ctx)
	if err != nil || has {
		t.Fatalf("expected no admin, got %v %v", has, err)
	}
	created, err := store.EnsureAdmin(ctx, NewUser{Username: "admin", Email: "admin@campus.test", PasswordHash: "hash"})
	if err != nil || !created {
		t.Fatalf("expected admin created, got %v %v", created, err)
	}
	created, err = store.EnsureAdmin(ctx, NewUser{Username: "admin2", Email: "admin2@campus.test", PasswordHash: "hash"})
	if err != nil || created {
		t.Fatalf("expected second ensure to be a no-op, got %v %v", created, err)
	}
	user, err := store.FindUserByLogin(ctx, "ADMIN@campus.test")
	if err != nil || user.Role != models.RoleAdmin {
		t.Fatalf("find admin by email: %v %+v", err, user)
	}
}
