package database

import (
	"trinity/internal/billing"
	"trinity/internal/funnel"
	"trinity/internal/onboarding"
	"trinity/internal/shared/kvstore"
	"trinity/internal/users"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&kvstore.Entry{},
		&funnel.Event{},
		&onboarding.Step{},
		&onboarding.Progress{},
		&onboarding.Template{},
		&onboarding.Event{},
		&billing.Plan{},
		&billing.Subscription{},
	)
}
