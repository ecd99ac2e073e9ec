// Package ledger keeps the authoritative record of meal subscriptions,
// plate consumption, student wallets, orders and the transaction journal.
//
// Every mutating operation runs as one database transaction. Rows that are
// read and then written are locked with SELECT ... FOR UPDATE on PostgreSQL;
// on SQLite the connection pool is limited to one connection (see db.Open),
// which serializes transactions within the process. Plate counters are also
// written with a compare-and-set guard, so a lost update surfaces as
// ErrConflict instead of silently corrupting the counter.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/igifu/campus-meals/internal/db"
	"gorm.io/gorm"
)

// Ledger implements the subscription, usage, wallet, order and journal operations.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for expiry checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a Ledger backed by conn.
func New(conn *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{db: conn, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) nowUTC() time.Time { return l.now().UTC() }

// atomic runs fn in one transaction and classifies the resulting error.
// fn must only use tx: the outer handle may be limited to a single connection.
func (l *Ledger) atomic(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("%w: %s: nil database", ErrStorage, op)
	}
	return classify(op, l.db.WithContext(ctx).Transaction(fn))
}

// Scope restricts which subscriptions an actor may touch.
// A zero field means no restriction on that column.
type Scope struct {
	StudentID    uint64
	RestaurantID uint64
}

// StudentScope limits access to subscriptions owned by studentID.
func StudentScope(studentID uint64) Scope { return Scope{StudentID: studentID} }

// RestaurantScope limits access to subscriptions redeemable at restaurantID.
func RestaurantScope(restaurantID uint64) Scope { return Scope{RestaurantID: restaurantID} }

func (s Scope) apply(q *gorm.DB) *gorm.DB {
	if s.StudentID != 0 {
		q = q.Where("student_id = ?", s.StudentID)
	}
	if s.RestaurantID != 0 {
		q = q.Where("restaurant_id = ?", s.RestaurantID)
	}
	return q
}

func (s Scope) empty() bool { return s.StudentID == 0 && s.RestaurantID == 0 }

func lockForUpdate(tx *gorm.DB) *gorm.DB { return db.ForUpdate(tx) }

func subscriptionReference(id uint64) string { return fmt.Sprintf("sub_%d", id) }

func shareReference(id uint64) string { return fmt.Sprintf("share_%d", id) }

func orderReference(id uint64) string { return fmt.Sprintf("order_%d", id) }
