package migrations

import (
	"github.com/calerio/duetrack/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createExpirationHistoryTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_expiration_history",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.HistoryEntryModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_expiration_history_expiration_created ON expiration_history (expiration_id, created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.HistoryEntryModel{})
		},
	}
}
