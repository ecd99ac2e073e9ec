package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
)

func TestCreditWalletJournalsTopup(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")

	balances, err := f.ledger.CreditWallet(context.Background(), studentID, MealWallet, decimal.RequireFromString("1500.50"), "momo")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	expectDecimal(t, "meal", balances.Meal, "1500.50")
	expectDecimal(t, "flexie", balances.Flexie, "0")

	rows, err := f.ledger.ListTransactions(context.Background(), TransactionFilter{UserID: studentID, Type: models.TransactionTopup})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(rows) != 1 || rows[0].PaymentMethod != "momo" || rows[0].Status != models.TransactionCompleted {
		t.Fatalf("unexpected topup journal: %+v", rows)
	}
	expectDecimal(t, "topup amount", rows[0].Amount, "1500.50")
}

func TestWalletRejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")

	for _, raw := range []string{"0", "-5", "1.005"} {
		_, err := f.ledger.CreditWallet(context.Background(), studentID, MealWallet, decimal.RequireFromString(raw), "cash")
		expectKind(t, err, ErrValidation)
	}
	_, err := f.ledger.CreditWallet(context.Background(), studentID, Wallet("savings"), decimal.NewFromInt(5), "cash")
	expectKind(t, err, ErrValidation)
	_, err = f.ledger.CreditWallet(context.Background(), 999, MealWallet, decimal.NewFromInt(5), "cash")
	expectKind(t, err, ErrNotFound)

	if _, errParse := ParseWallet("Flexie"); errParse != nil {
		t.Fatalf("expected Flexie to parse, got %v", errParse)
	}
}

func TestDebitWalletRejectsOverdraft(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	f.fund(t, studentID, MealWallet, "100")

	_, err := f.ledger.DebitWallet(context.Background(), studentID, MealWallet, decimal.NewFromInt(101), "order_1")
	expectKind(t, err, ErrInsufficientBalance)

	balances, err := f.ledger.DebitWallet(context.Background(), studentID, MealWallet, decimal.NewFromInt(100), "order_1")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	expectDecimal(t, "meal", balances.Meal, "0")
	if rows := f.journal(t, "order_1"); len(rows) != 1 || rows[0].Type != models.TransactionOrderPayment {
		t.Fatalf("expected one order payment journal row, got %+v", rows)
	}
}

func TestExchangeWallets(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	f.fund(t, studentID, MealWallet, "500")

	balances, err := f.ledger.ExchangeWallets(context.Background(), studentID, MealWallet, FlexieWallet, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	expectDecimal(t, "meal", balances.Meal, "300")
	expectDecimal(t, "flexie", balances.Flexie, "200")

	_, err = f.ledger.ExchangeWallets(context.Background(), studentID, FlexieWallet, MealWallet, decimal.NewFromInt(201))
	expectKind(t, err, ErrInsufficientBalance)
	_, err = f.ledger.ExchangeWallets(context.Background(), studentID, MealWallet, MealWallet, decimal.NewFromInt(1))
	expectKind(t, err, ErrValidation)

	stored, err := f.ledger.Balances(context.Background(), studentID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	expectDecimal(t, "stored meal", stored.Meal, "300")
	expectDecimal(t, "stored flexie", stored.Flexie, "200")
	if total := stored.Meal.Add(stored.Flexie); !total.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("exchange must conserve money, total=%s", total)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	studentID := f.student(t, "aline", "0788111111")
	f.fund(t, studentID, FlexieWallet, "100")

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.DebitWallet(context.Background(), studentID, FlexieWallet, decimal.NewFromInt(20), "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected 5 successful debits, got %d", succeeded)
	}
	balances, err := f.ledger.Balances(context.Background(), studentID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	expectDecimal(t, "flexie", balances.Flexie, "0")
}
