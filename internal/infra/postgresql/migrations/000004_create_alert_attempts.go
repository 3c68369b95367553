package migrations

import (
	"github.com/calerio/duetrack/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createAlertAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_alert_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AlertAttemptModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_alert_attempts_rule_created ON alert_attempts (rule_id, created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AlertAttemptModel{})
		},
	}
}
