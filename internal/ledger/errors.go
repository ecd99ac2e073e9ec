package ledger

import (
	"errors"
	"fmt"

	"github.com/igifu/campus-meals/internal/db"
)

// Error kinds. Every error returned by the ledger matches exactly one of these
// with errors.Is, except ErrSubscriptionDepleted which is both an invalid state
// and a capacity failure.
var (
	ErrNotFound             = errors.New("ledger: not found")
	ErrInvalidState         = errors.New("ledger: invalid state")
	ErrInsufficientCapacity = errors.New("ledger: insufficient capacity")
	ErrInsufficientBalance  = errors.New("ledger: insufficient balance")
	ErrValidation           = errors.New("ledger: validation failed")
	ErrConflict             = errors.New("ledger: concurrent update conflict")
	ErrStorage              = errors.New("ledger: storage failure")
)

// Specific failures, each classified under one kind.
var (
	ErrStudentNotFound      = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: student not found"}
	ErrRecipientNotFound    = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: recipient not found"}
	ErrRestaurantNotFound   = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: restaurant not found"}
	ErrPlanNotFound         = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: meal plan not found"}
	ErrSubscriptionNotFound = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: subscription not found"}
	ErrOrderNotFound        = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: order not found"}
	ErrTransactionNotFound  = &kindError{kinds: []error{ErrNotFound}, msg: "ledger: transaction not found"}

	ErrSubscriptionInactive   = &kindError{kinds: []error{ErrInvalidState}, msg: "ledger: subscription is not active"}
	ErrSubscriptionExpired    = &kindError{kinds: []error{ErrInvalidState}, msg: "ledger: subscription has expired"}
	ErrSubscriptionDepleted   = &kindError{kinds: []error{ErrInvalidState, ErrInsufficientCapacity}, msg: "ledger: subscription is depleted"}
	ErrPlanInactive           = &kindError{kinds: []error{ErrInvalidState}, msg: "ledger: meal plan is not active"}
	ErrRestaurantUnavailable  = &kindError{kinds: []error{ErrInvalidState}, msg: "ledger: restaurant is not accepting subscriptions"}
	ErrInvalidOrderTransition = &kindError{kinds: []error{ErrInvalidState}, msg: "ledger: order status transition not allowed"}
	ErrTransactionSettled     = &kindError{kinds: []error{ErrInvalidState}, msg: "ledger: transaction already settled"}

	ErrInsufficientPlates       = &kindError{kinds: []error{ErrInsufficientCapacity}, msg: "ledger: not enough plates remaining"}
	ErrInsufficientUnusedPlates = &kindError{kinds: []error{ErrInsufficientCapacity}, msg: "ledger: not enough unused plates to share"}
)

// kindError is a named failure that matches one or more error kinds.
type kindError struct {
	kinds []error
	msg   string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool {
	for _, kind := range e.kinds {
		if kind == target {
			return true
		}
	}
	return false
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Message)
}

// Unwrap classifies the error as ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }

// classify keeps ledger errors as they are and wraps driver errors as
// ErrConflict or ErrStorage.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrNotFound, ErrInvalidState, ErrInsufficientCapacity, ErrInsufficientBalance, ErrValidation, ErrConflict, ErrStorage} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if db.IsConflict(err) {
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
