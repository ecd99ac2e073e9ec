package db

import (
	"fmt"

	"github.com/igifu/campus-meals/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// schemaModels lists every table in dependency order.
func schemaModels() []any {
	return []any{
		&models.User{},
		&models.StudentProfile{},
		&models.Restaurant{},
		&models.MealPlan{},
		&models.Subscription{},
		&models.MealUsageLog{},
		&models.Order{},
		&models.Transaction{},
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(schemaModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errBackfill := backfillPurchasedPlates(conn); errBackfill != nil {
		return errBackfill
	}

	if errActiveIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_subscriptions_restaurant_active
		ON subscriptions (restaurant_id, student_id, expiry_date)
		WHERE status = 'Active'
	`).Error; errActiveIdx != nil {
		return fmt.Errorf("db: create active subscriptions index: %w", errActiveIdx)
	}
	if errJournalIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions (user_id, created_at DESC)
	`).Error; errJournalIdx != nil {
		return fmt.Errorf("db: create transactions user index: %w", errJournalIdx)
	}
	if errMetadataIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transactions_metadata
		ON transactions USING GIN (metadata)
	`).Error; errMetadataIdx != nil {
		return fmt.Errorf("db: create transactions metadata index: %w", errMetadataIdx)
	}
	return nil
}

// migrateSQLite applies SQLite schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(schemaModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errBackfill := backfillPurchasedPlates(conn); errBackfill != nil {
		return errBackfill
	}

	if errActiveIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_subscriptions_restaurant_active
		ON subscriptions (restaurant_id, student_id, expiry_date)
		WHERE status = 'Active'
	`).Error; errActiveIdx != nil {
		return fmt.Errorf("db: create active subscriptions index: %w", errActiveIdx)
	}
	if errJournalIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions (user_id, created_at)
	`).Error; errJournalIdx != nil {
		return fmt.Errorf("db: create transactions user index: %w", errJournalIdx)
	}
	return nil
}

// backfillPurchasedPlates fills the proration base for rows created before it existed.
func backfillPurchasedPlates(conn *gorm.DB) error {
	if errBackfill := conn.Exec(`
		UPDATE subscriptions
		SET purchased_plates = total_plates
		WHERE purchased_plates = 0 AND total_plates > 0
	`).Error; errBackfill != nil {
		return fmt.Errorf("db: backfill purchased plates: %w", errBackfill)
	}
	return nil
}
