package migrations

import (
	"github.com/calerio/duetrack/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createLookupTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_lookup_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&repository.UserModel{},
				&repository.PriorityModel{},
				&repository.SectorModel{},
			); err != nil {
				return err
			}

			seeds := []string{
				`INSERT INTO priorities (id, name, color) VALUES
					('11111111-1111-1111-1111-111111111101', 'High', '#e74c3c'),
					('11111111-1111-1111-1111-111111111102', 'Medium', '#f39c12'),
					('11111111-1111-1111-1111-111111111103', 'Low', '#2ecc71')
					ON CONFLICT (name) DO NOTHING`,
				`INSERT INTO sectors (id, name, color) VALUES
					('22222222-2222-2222-2222-222222222201', 'Legal', '#3498db'),
					('22222222-2222-2222-2222-222222222202', 'Finance', '#9b59b6'),
					('22222222-2222-2222-2222-222222222203', 'Operations', '#1abc9c')
					ON CONFLICT (name) DO NOTHING`,
			}
			for _, sql := range seeds {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.SectorModel{},
				&repository.PriorityModel{},
				&repository.UserModel{},
			)
		},
	}
}
