package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
)

func TestShareMealsMovesUnusedPlates(t *testing.T) {
	f := newFixture(t)
	senderID := f.student(t, "aline", "0788111111")
	recipientID := f.student(t, "eric", "0788222222")
	restaurantID, planID := f.restaurant(t, "inyange", 10, "5000", 30)
	sub := f.subscribe(t, senderID, restaurantID, planID, 10, "5000")
	if _, err := f.ledger.ConsumePlates(context.Background(), sub.ID, StudentScope(senderID), 2); err != nil {
		t.Fatalf("consume: %v", err)
	}

	result, err := f.ledger.ShareMeals(context.Background(), ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 3})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	sender := f.reload(t, sub.ID)
	if sender.TotalPlates != 7 || sender.UsedPlates != 2 {
		t.Fatalf("expected sender 2/7, got %d/%d", sender.UsedPlates, sender.TotalPlates)
	}
	recipient := f.reload(t, result.Recipient.ID)
	if recipient.StudentID != recipientID || recipient.RestaurantID != restaurantID || recipient.PlanID != planID {
		t.Fatalf("recipient subscription not linked: %+v", recipient)
	}
	if recipient.TotalPlates != 3 || recipient.UsedPlates != 0 || recipient.Status != models.SubscriptionActive {
		t.Fatalf("unexpected recipient subscription: %+v", recipient)
	}
	if recipient.PaymentMethod != TransferPaymentMethod || !recipient.PricePaid.IsZero() {
		t.Fatalf("expected transfer subscription, got %+v", recipient)
	}
	if recipient.TransferredFromID == nil || *recipient.TransferredFromID != sub.ID {
		t.Fatalf("expected origin %d, got %v", sub.ID, recipient.TransferredFromID)
	}
	wantExpiry := f.clock.Now().AddDate(0, 0, sender.DurationDays)
	if !recipient.ExpiryDate.Equal(wantExpiry) {
		t.Fatalf("expected recipient expiry %s, got %s", wantExpiry, recipient.ExpiryDate)
	}

	rows := f.journal(t, shareReference(recipient.ID))
	if len(rows) != 1 || rows[0].Type != models.TransactionTransfer || rows[0].UserID != senderID || rows[0].PaymentMethod != MealShareMethod {
		t.Fatalf("unexpected share journal: %+v", rows)
	}
	expectDecimal(t, "shared meals", rows[0].Amount, "3")

	if _, err := f.ledger.ConsumePlates(context.Background(), recipient.ID, StudentScope(recipientID), 3); err != nil {
		t.Fatalf("recipient consume: %v", err)
	}
}

func TestShareMealsRejections(t *testing.T) {
	f := newFixture(t)
	senderID := f.student(t, "aline", "0788111111")
	recipientID := f.student(t, "eric", "0788222222")
	restaurantID, planID := f.restaurant(t, "inyange", 5, "2500", 30)
	sub := f.subscribe(t, senderID, restaurantID, planID, 5, "2500")

	cases := []struct {
		name string
		p    ShareParams
		kind error
	}{
		{name: "more than unused", p: ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 6}, kind: ErrInsufficientCapacity},
		{name: "whole untouched subscription", p: ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 5}, kind: ErrValidation},
		{name: "self", p: ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: senderID, Meals: 1}, kind: ErrValidation},
		{name: "zero meals", p: ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 0}, kind: ErrValidation},
		{name: "unknown recipient", p: ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: 999, Meals: 1}, kind: ErrNotFound},
		{name: "restaurant recipient", p: ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: 3, Meals: 1}, kind: ErrNotFound},
		{name: "not the owner", p: ShareParams{SenderID: recipientID, SubscriptionID: sub.ID, RecipientID: senderID, Meals: 1}, kind: ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.ShareMeals(context.Background(), tc.p)
			expectKind(t, err, tc.kind)
		})
	}
	if got := f.reload(t, sub.ID); got.TotalPlates != 5 {
		t.Fatalf("rejected shares must not change the sender, total=%d", got.TotalPlates)
	}
	var count int64
	f.conn.Model(&models.Subscription{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected no recipient subscriptions, got %d", count-1)
	}
}

func TestShareRemainingPlatesDepletesSender(t *testing.T) {
	f := newFixture(t)
	senderID := f.student(t, "aline", "0788111111")
	recipientID := f.student(t, "eric", "0788222222")
	restaurantID, planID := f.restaurant(t, "inyange", 5, "2500", 30)
	sub := f.subscribe(t, senderID, restaurantID, planID, 5, "2500")
	if _, err := f.ledger.ConsumePlates(context.Background(), sub.ID, StudentScope(senderID), 2); err != nil {
		t.Fatalf("consume: %v", err)
	}

	result, err := f.ledger.ShareMeals(context.Background(), ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 3})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if result.Sender.Status != models.SubscriptionDepleted || result.Sender.TotalPlates != 2 {
		t.Fatalf("expected sender Depleted 2/2, got %s %d/%d", result.Sender.Status, result.Sender.UsedPlates, result.Sender.TotalPlates)
	}
	_, err = f.ledger.ConsumePlates(context.Background(), sub.ID, StudentScope(senderID), 1)
	expectKind(t, err, ErrInvalidState)
}

func TestConcurrentShareAndConsumeConservePlates(t *testing.T) {
	f := newFixture(t)
	senderID := f.student(t, "aline", "0788111111")
	recipientID := f.student(t, "eric", "0788222222")
	restaurantID, planID := f.restaurant(t, "inyange", 6, "3000", 30)
	sub := f.subscribe(t, senderID, restaurantID, planID, 6, "3000")

	var wg sync.WaitGroup
	var shareErr, consumeErr error
	var shared ShareResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		shared, shareErr = f.ledger.ShareMeals(context.Background(), ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 3})
	}()
	go func() {
		defer wg.Done()
		_, consumeErr = f.ledger.ConsumePlates(context.Background(), sub.ID, RestaurantScope(restaurantID), 4)
	}()
	wg.Wait()

	sender := f.reload(t, sub.ID)
	if sender.UsedPlates > sender.TotalPlates {
		t.Fatalf("overdrawn sender: %d/%d", sender.UsedPlates, sender.TotalPlates)
	}
	recipientPlates := 0
	if shareErr == nil {
		recipientPlates = f.reload(t, shared.Recipient.ID).TotalPlates
	} else if !errors.Is(shareErr, ErrInsufficientCapacity) {
		t.Fatalf("unexpected share error: %v", shareErr)
	}
	if consumeErr != nil && !errors.Is(consumeErr, ErrInsufficientCapacity) {
		t.Fatalf("unexpected consume error: %v", consumeErr)
	}
	if shareErr == nil && consumeErr == nil {
		t.Fatalf("share 3 and consume 4 of 6 cannot both succeed")
	}
	if sender.TotalPlates+recipientPlates != 6 {
		t.Fatalf("plates not conserved: sender=%d recipient=%d", sender.TotalPlates, recipientPlates)
	}
}

func TestSubscribeConsumeShareUntilDepleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	senderID := f.student(t, "aline", "0788111111")
	recipientID := f.student(t, "eric", "0788222222")
	restaurantID, planID := f.restaurant(t, "inyange", 60, "30000", 30)

	sub, err := f.ledger.SubscribeToPlan(ctx, SubscribeParams{StudentID: senderID, PlanID: planID, PaymentMethod: "momo", PaymentPhone: "0788111111"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, errConsume := f.ledger.ConsumePlates(ctx, sub.ID, RestaurantScope(restaurantID), 1); errConsume != nil {
			t.Fatalf("consume %d: %v", i, errConsume)
		}
	}

	result, err := f.ledger.ShareMeals(ctx, ShareParams{SenderID: senderID, SubscriptionID: sub.ID, RecipientID: recipientID, Meals: 5})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	sender, err := f.ledger.GetSubscription(ctx, sub.ID, StudentScope(senderID))
	if err != nil {
		t.Fatalf("get sender: %v", err)
	}
	if sender.UsedPlates != 3 || sender.TotalPlates != 55 || sender.EffectiveStatus != models.SubscriptionActive {
		t.Fatalf("expected sender Active 3/55, got %s %d/%d", sender.EffectiveStatus, sender.UsedPlates, sender.TotalPlates)
	}
	if len(sender.UsedMeals) != 3 || sender.UsedMeals[0] != 0 || sender.UsedMeals[1] != 1 || sender.UsedMeals[2] != 2 {
		t.Fatalf("expected sender used meals [0 1 2], got %v", sender.UsedMeals)
	}

	recipientSub := result.Recipient
	if recipientSub.TransferredFromID == nil || *recipientSub.TransferredFromID != sub.ID || !recipientSub.PricePaid.IsZero() {
		t.Fatalf("unexpected recipient subscription: %+v", recipientSub)
	}
	updated, err := f.ledger.ConsumePlates(ctx, recipientSub.ID, StudentScope(recipientID), 5)
	if err != nil {
		t.Fatalf("recipient consume: %v", err)
	}
	if updated.UsedPlates != 5 || updated.TotalPlates != 5 || updated.Status != models.SubscriptionDepleted {
		t.Fatalf("expected recipient Depleted 5/5, got %s %d/%d", updated.Status, updated.UsedPlates, updated.TotalPlates)
	}
	_, err = f.ledger.ConsumePlates(ctx, recipientSub.ID, StudentScope(recipientID), 1)
	expectKind(t, err, ErrInvalidState)

	if rows := f.journal(t, subscriptionReference(sub.ID)); len(rows) != 1 || rows[0].Type != models.TransactionSubscriptionPayment {
		t.Fatalf("expected one subscription payment row, got %+v", rows)
	}
	rows := f.journal(t, shareReference(recipientSub.ID))
	if len(rows) != 1 || rows[0].Type != models.TransactionTransfer || !rows[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected one transfer row of 5 meals, got %+v", rows)
	}
}
