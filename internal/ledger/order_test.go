package ledger

import (
	"context"
	"testing"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
)

func TestPlaceOrderChargesProratedPrice(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	restaurantID, planID := f.restaurant(t, "inyange", 60, "30000", 30)
	sub := f.subscribe(t, studentID, restaurantID, planID, 60, "30000")
	f.fund(t, studentID, MealWallet, "1200")

	order, err := f.ledger.PlaceOrder(context.Background(), PlaceOrderParams{StudentID: studentID, RestaurantID: restaurantID, SubscriptionID: &sub.ID, Plates: 2})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	expectDecimal(t, "charged", order.ChargedAmount, "1000")
	balances, _ := f.ledger.Balances(context.Background(), studentID)
	expectDecimal(t, "meal", balances.Meal, "200")
	if rows := f.journal(t, orderReference(order.ID)); len(rows) != 1 || rows[0].Type != models.TransactionOrderPayment {
		t.Fatalf("expected order payment journal, got %+v", rows)
	}
	if got := f.reload(t, sub.ID); got.UsedPlates != 0 {
		t.Fatalf("placing an order must not consume plates, used=%d", got.UsedPlates)
	}
}

func TestPlaceOrderWithoutFundsCreatesNothing(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	restaurantID, planID := f.restaurant(t, "inyange", 60, "30000", 30)
	sub := f.subscribe(t, studentID, restaurantID, planID, 60, "30000")

	_, err := f.ledger.PlaceOrder(context.Background(), PlaceOrderParams{StudentID: studentID, RestaurantID: restaurantID, SubscriptionID: &sub.ID, Plates: 1})
	expectKind(t, err, ErrInsufficientBalance)

	var count int64
	f.conn.Model(&models.Order{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected failed order to roll back, found %d orders", count)
	}
}

func TestServeOrderConsumesPlates(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	restaurantID, planID := f.restaurant(t, "inyange", 60, "30000", 30)
	otherRestaurantID, _ := f.restaurant(t, "meze", 10, "100", 30)
	sub := f.subscribe(t, studentID, restaurantID, planID, 60, "30000")
	f.fund(t, studentID, MealWallet, "5000")

	order, err := f.ledger.PlaceOrder(context.Background(), PlaceOrderParams{StudentID: studentID, RestaurantID: restaurantID, SubscriptionID: &sub.ID, Plates: 3})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	_, err = f.ledger.UpdateOrderStatus(context.Background(), otherRestaurantID, order.ID, models.OrderServed)
	expectKind(t, err, ErrNotFound)

	if _, err := f.ledger.UpdateOrderStatus(context.Background(), restaurantID, order.ID, models.OrderApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	served, err := f.ledger.UpdateOrderStatus(context.Background(), restaurantID, order.ID, models.OrderServed)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	if served.Status != models.OrderServed {
		t.Fatalf("expected served, got %s", served.Status)
	}
	if got := f.reload(t, sub.ID); got.UsedPlates != 3 {
		t.Fatalf("expected 3 used plates, got %d", got.UsedPlates)
	}
	if got := f.usageCount(t, sub.ID); got != 3 {
		t.Fatalf("expected 3 usage logs, got %d", got)
	}

	_, err = f.ledger.UpdateOrderStatus(context.Background(), restaurantID, order.ID, models.OrderRejected)
	expectKind(t, err, ErrInvalidState)
}

func TestServeOrderFailsWhenPlatesRanOut(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	restaurantID, planID := f.restaurant(t, "inyange", 4, "2000", 30)
	sub := f.subscribe(t, studentID, restaurantID, planID, 4, "2000")
	f.fund(t, studentID, MealWallet, "5000")

	order, err := f.ledger.PlaceOrder(context.Background(), PlaceOrderParams{StudentID: studentID, RestaurantID: restaurantID, SubscriptionID: &sub.ID, Plates: 2})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := f.ledger.ConsumePlates(context.Background(), sub.ID, StudentScope(studentID), 3); err != nil {
		t.Fatalf("consume: %v", err)
	}

	_, err = f.ledger.UpdateOrderStatus(context.Background(), restaurantID, order.ID, models.OrderServed)
	expectKind(t, err, ErrInsufficientCapacity)
	var stored models.Order
	f.conn.First(&stored, order.ID)
	if stored.Status != models.OrderPending {
		t.Fatalf("failed serve must leave order pending, got %s", stored.Status)
	}
}

func TestRejectOrderRefundsCharge(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	restaurantID, planID := f.restaurant(t, "inyange", 60, "30000", 30)
	sub := f.subscribe(t, studentID, restaurantID, planID, 60, "30000")
	f.fund(t, studentID, MealWallet, "500")

	order, err := f.ledger.PlaceOrder(context.Background(), PlaceOrderParams{StudentID: studentID, RestaurantID: restaurantID, SubscriptionID: &sub.ID, Plates: 1})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := f.ledger.UpdateOrderStatus(context.Background(), restaurantID, order.ID, models.OrderRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	balances, _ := f.ledger.Balances(context.Background(), studentID)
	expectDecimal(t, "meal", balances.Meal, "500")
	rows := f.journal(t, orderReference(order.ID))
	if len(rows) != 2 || rows[1].Type != models.TransactionRefund {
		t.Fatalf("expected payment and refund rows, got %+v", rows)
	}
}

func TestProrationSurvivesSharing(t *testing.T) {
	f := newFixture(t)
	senderID := f.student(t, "aline", "0788111111")
	recipientID := f.student(t, "eric", "0788222222")
	restaurantID, planID := f.restaurant(t, "inyange", 10, "5000", 30)
	sub := f.subscribe(t, senderID, restaurantID, planID, 10, "5000")

	result, err := f.ledger.ShareMeals(context.Background(), ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 4})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if got := prorate(f.reload(t, sub.ID), 1); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected sender plate price 500, got %s", got)
	}
	if got := prorate(result.Recipient, 2); !got.IsZero() {
		t.Fatalf("expected shared plates to be free, got %s", got)
	}
}

func TestListOrdersRequiresScope(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.ListOrders(context.Background(), OrderFilter{})
	expectKind(t, err, ErrValidation)
}
