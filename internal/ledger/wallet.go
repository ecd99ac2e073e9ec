package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/igifu/campus-meals/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet names one of the two balances on a student profile.
type Wallet string

const (
	MealWallet   Wallet = "meal"
	FlexieWallet Wallet = "flexie"
)

// ParseWallet converts a user-supplied wallet name.
func ParseWallet(raw string) (Wallet, error) {
	switch Wallet(strings.ToLower(strings.TrimSpace(raw))) {
	case MealWallet:
		return MealWallet, nil
	case FlexieWallet:
		return FlexieWallet, nil
	default:
		return "", invalid("wallet", fmt.Sprintf("unknown wallet %q", raw))
	}
}

func (w Wallet) column() string {
	if w == FlexieWallet {
		return "flexie_wallet_balance"
	}
	return "meal_wallet_balance"
}

// Balances is a snapshot of both wallets.
type Balances struct {
	Meal   decimal.Decimal `json:"meal"`
	Flexie decimal.Decimal `json:"flexie"`
}

func (b Balances) of(w Wallet) decimal.Decimal {
	if w == FlexieWallet {
		return b.Flexie
	}
	return b.Meal
}

func (b *Balances) set(w Wallet, v decimal.Decimal) {
	if w == FlexieWallet {
		b.Flexie = v
		return
	}
	b.Meal = v
}

func balancesOf(p models.StudentProfile) Balances {
	return Balances{Meal: p.MealWalletBalance, Flexie: p.FlexieWalletBalance}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return invalid("amount", "must have at most two decimal places")
	}
	return nil
}

func validateWallet(w Wallet) error {
	if w != MealWallet && w != FlexieWallet {
		return invalid("wallet", fmt.Sprintf("unknown wallet %q", string(w)))
	}
	return nil
}

// Balances returns the current wallet balances of a student.
func (l *Ledger) Balances(ctx context.Context, studentID uint64) (Balances, error) {
	var profile models.StudentProfile
	if errFind := l.db.WithContext(ctx).Where("user_id = ?", studentID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Balances{}, ErrStudentNotFound
		}
		return Balances{}, classify("load balances", errFind)
	}
	return balancesOf(profile), nil
}

// CreditWallet adds amount to a wallet and journals a completed top-up.
func (l *Ledger) CreditWallet(ctx context.Context, studentID uint64, wallet Wallet, amount decimal.Decimal, method string) (Balances, error) {
	if errWallet := validateWallet(wallet); errWallet != nil {
		return Balances{}, errWallet
	}
	if errAmount := validateAmount(amount); errAmount != nil {
		return Balances{}, errAmount
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "cash"
	}
	now := l.nowUTC()
	var out Balances
	errTx := l.atomic(ctx, "credit wallet", func(tx *gorm.DB) error {
		balances, errCredit := adjustWalletTx(tx, studentID, wallet, amount, now)
		if errCredit != nil {
			return errCredit
		}
		if _, errJournal := appendEntry(tx, Entry{
			UserID:        studentID,
			Amount:        amount,
			Type:          models.TransactionTopup,
			PaymentMethod: method,
			Status:        models.TransactionCompleted,
			Metadata:      map[string]any{"wallet": string(wallet)},
		}, now); errJournal != nil {
			return errJournal
		}
		out = balances
		return nil
	})
	if errTx != nil {
		return Balances{}, errTx
	}
	return out, nil
}

// DebitWallet removes amount from a wallet and journals it as an order payment.
func (l *Ledger) DebitWallet(ctx context.Context, studentID uint64, wallet Wallet, amount decimal.Decimal, referenceID string) (Balances, error) {
	if errWallet := validateWallet(wallet); errWallet != nil {
		return Balances{}, errWallet
	}
	if errAmount := validateAmount(amount); errAmount != nil {
		return Balances{}, errAmount
	}
	now := l.nowUTC()
	var out Balances
	errTx := l.atomic(ctx, "debit wallet", func(tx *gorm.DB) error {
		balances, errDebit := adjustWalletTx(tx, studentID, wallet, amount.Neg(), now)
		if errDebit != nil {
			return errDebit
		}
		if _, errJournal := appendEntry(tx, Entry{
			UserID:        studentID,
			Amount:        amount,
			Type:          models.TransactionOrderPayment,
			PaymentMethod: string(wallet) + "_wallet",
			Status:        models.TransactionCompleted,
			ReferenceID:   strings.TrimSpace(referenceID),
			Metadata:      map[string]any{"wallet": string(wallet)},
		}, now); errJournal != nil {
			return errJournal
		}
		out = balances
		return nil
	})
	if errTx != nil {
		return Balances{}, errTx
	}
	return out, nil
}

// ExchangeWallets moves amount from one wallet to the other.
func (l *Ledger) ExchangeWallets(ctx context.Context, studentID uint64, from, to Wallet, amount decimal.Decimal) (Balances, error) {
	if errWallet := validateWallet(from); errWallet != nil {
		return Balances{}, errWallet
	}
	if errWallet := validateWallet(to); errWallet != nil {
		return Balances{}, errWallet
	}
	if from == to {
		return Balances{}, invalid("to_wallet", "must differ from from_wallet")
	}
	if errAmount := validateAmount(amount); errAmount != nil {
		return Balances{}, errAmount
	}
	now := l.nowUTC()
	var out Balances
	errTx := l.atomic(ctx, "exchange wallets", func(tx *gorm.DB) error {
		profile, errLoad := lockProfile(tx, studentID)
		if errLoad != nil {
			return errLoad
		}
		balances := balancesOf(profile)
		if balances.of(from).LessThan(amount) {
			return ErrInsufficientBalance
		}
		balances.set(from, balances.of(from).Sub(amount))
		balances.set(to, balances.of(to).Add(amount))
		if errUpdate := tx.Model(&models.StudentProfile{}).
			Where("user_id = ?", studentID).
			Updates(map[string]any{
				from.column(): balances.of(from),
				to.column():   balances.of(to),
				"updated_at":  now,
			}).Error; errUpdate != nil {
			return errUpdate
		}
		if _, errJournal := appendEntry(tx, Entry{
			UserID:        studentID,
			Amount:        amount,
			Type:          models.TransactionExchange,
			PaymentMethod: string(from) + "_to_" + string(to),
			Status:        models.TransactionCompleted,
			Metadata:      map[string]any{"from_wallet": string(from), "to_wallet": string(to)},
		}, now); errJournal != nil {
			return errJournal
		}
		out = balances
		return nil
	})
	if errTx != nil {
		return Balances{}, errTx
	}
	return out, nil
}

// adjustWalletTx applies a signed delta to one wallet under a row lock.
func adjustWalletTx(tx *gorm.DB, studentID uint64, wallet Wallet, delta decimal.Decimal, now time.Time) (Balances, error) {
	profile, errLoad := lockProfile(tx, studentID)
	if errLoad != nil {
		return Balances{}, errLoad
	}
	balances := balancesOf(profile)
	next := balances.of(wallet).Add(delta)
	if next.IsNegative() {
		return Balances{}, ErrInsufficientBalance
	}
	if errUpdate := tx.Model(&models.StudentProfile{}).
		Where("user_id = ?", studentID).
		Updates(map[string]any{
			wallet.column(): next,
			"updated_at":    now,
		}).Error; errUpdate != nil {
		return Balances{}, errUpdate
	}
	balances.set(wallet, next)
	return balances, nil
}

func lockProfile(tx *gorm.DB, studentID uint64) (models.StudentProfile, error) {
	var profile models.StudentProfile
	if errFind := lockForUpdate(tx).Where("user_id = ?", studentID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.StudentProfile{}, ErrStudentNotFound
		}
		return models.StudentProfile{}, errFind
	}
	return profile, nil
}
