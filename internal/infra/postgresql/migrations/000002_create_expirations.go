package migrations

import (
	"github.com/calerio/duetrack/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createExpirationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_expirations",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ExpirationModel{}); err != nil {
				return err
			}
			// Reconciliation and the due query both scan by status and date.
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_expirations_status_due_date ON expirations (status, due_date)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ExpirationModel{})
		},
	}
}
