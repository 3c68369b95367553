package migrations

import (
	"github.com/calerio/duetrack/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createAlertRulesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_alert_rules",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AlertRuleModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_alert_rules_due_scan ON alert_rules (active, fired_count) WHERE active`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AlertRuleModel{})
		},
	}
}
