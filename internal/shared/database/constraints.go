package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds indexes the query paths depend on beyond what
// AutoMigrate derives from struct tags
func MigrateConstraints(db *gorm.DB) error {
	// Funnel query groups recent audit rows by kind inside a time window
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_funnel_audit_kind_occurred
		ON funnel_audit_log (kind, occurred_at);
	`).Error
	if err != nil {
		return err
	}

	// Onboarding analytics groups by event_type and by day/hour buckets
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_onboarding_events_type_created
		ON onboarding_events (event_type, created_at);
	`).Error
	if err != nil {
		return err
	}

	// Checklist assembly joins progress to active steps per user
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_onboarding_progress_user_status
		ON onboarding_progress (user_id, status);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
