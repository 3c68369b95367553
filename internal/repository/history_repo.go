package repository

import (
	"context"

	"github.com/calerio/duetrack/internal/domain"
	"gorm.io/gorm"
)

// HistoryRepository is the append-only audit ledger. There is deliberately
// no update or delete: the ledger is the tamper-evident record of lifecycle
// mutations, independent of the mutable notes field.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	ListByExpiration(ctx context.Context, expirationID string) ([]domain.HistoryEntry, error)
}

type GormHistoryRepo struct {
	db *gorm.DB
}

func NewGormHistoryRepo(db *gorm.DB) *GormHistoryRepo {
	return &GormHistoryRepo{db: db}
}

func (r *GormHistoryRepo) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	model := historyModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if entry != nil {
		*entry = *historyModelToDomain(model)
	}
	return nil
}

func (r *GormHistoryRepo) ListByExpiration(ctx context.Context, expirationID string) ([]domain.HistoryEntry, error) {
	var models []HistoryEntryModel
	err := r.db.WithContext(ctx).
		Where("expiration_id = ?", expirationID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *historyModelToDomain(&models[i]))
	}
	return entries, nil
}
