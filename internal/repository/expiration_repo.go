package repository

import (
	"context"
	"errors"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"gorm.io/gorm"
)

// SearchParams filters expiration queries. Nil/zero fields are ignored.
type SearchParams struct {
	Text          string
	ResponsibleID *string
	PriorityID    *string
	SectorID      *string
	Status        *domain.Status
	From          *time.Time
	To            *time.Time
	Limit         int
}

// GroupCount is one bucket of an aggregate count query.
type GroupCount struct {
	Name  string `gorm:"column:name"`
	Count int    `gorm:"column:count"`
	Color string `gorm:"column:color"`
}

type ExpirationRepository interface {
	// Create persists the expiration together with its default alert rule
	// and Created history entry in one transaction.
	Create(ctx context.Context, e *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Expiration, error)
	// Update persists the full record plus the audit entry atomically.
	Update(ctx context.Context, e *domain.Expiration, entry *domain.HistoryEntry) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, params SearchParams) ([]domain.Expiration, error)
	// ListNonRenewed returns every record the reconciliation sweep may touch.
	ListNonRenewed(ctx context.Context) ([]domain.Expiration, error)
	// UpdateStatus flips the status and appends the audit entry atomically.
	UpdateStatus(ctx context.Context, id string, status domain.Status, entry *domain.HistoryEntry) error
	// Renew atomically marks the current record Renewed (with its annotated
	// notes), creates the replacement record plus its default alert rule,
	// and appends the Renewed history entry. A failure leaves nothing
	// visible.
	Renew(ctx context.Context, current *domain.Expiration, replacement *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error
	CountByStatus(ctx context.Context) ([]GroupCount, error)
	CountByPriority(ctx context.Context) ([]GroupCount, error)
	CountBySector(ctx context.Context) ([]GroupCount, error)
	CountByResponsible(ctx context.Context, limit int) ([]GroupCount, error)
}

type GormExpirationRepo struct {
	db *gorm.DB
}

func NewGormExpirationRepo(db *gorm.DB) *GormExpirationRepo {
	return &GormExpirationRepo{db: db}
}

func (r *GormExpirationRepo) Create(ctx context.Context, e *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error {
	model := expirationModelFromDomain(e)
	ruleModel := ruleModelFromDomain(rule)
	entryModel := historyModelFromDomain(entry)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if ruleModel != nil {
			if err := tx.Create(ruleModel).Error; err != nil {
				return err
			}
		}
		if entryModel != nil {
			if err := tx.Create(entryModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	*e = *expirationModelToDomain(model)
	if rule != nil {
		*rule = *ruleModelToDomain(ruleModel)
	}
	if entry != nil {
		*entry = *historyModelToDomain(entryModel)
	}
	return nil
}

func (r *GormExpirationRepo) GetByID(ctx context.Context, id string) (*domain.Expiration, error) {
	var model ExpirationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return expirationModelToDomain(&model), nil
}

func (r *GormExpirationRepo) Update(ctx context.Context, e *domain.Expiration, entry *domain.HistoryEntry) error {
	model := expirationModelFromDomain(e)
	entryModel := historyModelFromDomain(entry)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExpirationModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"due_date":       model.DueDate,
				"concept":        model.Concept,
				"responsible_id": model.ResponsibleID,
				"priority_id":    model.PriorityID,
				"sector_id":      model.SectorID,
				"status":         model.Status,
				"notes":          model.Notes,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if entryModel != nil {
			if err := tx.Create(entryModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormExpirationRepo) Delete(ctx context.Context, id string) error {
	// Cascade is done explicitly so the delete behaves identically across
	// the postgres and sqlite dialects.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("rule_id IN (?)", tx.Model(&AlertRuleModel{}).Select("id").Where("expiration_id = ?", id)).
			Delete(&AlertAttemptModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("expiration_id = ?", id).Delete(&AlertRuleModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("expiration_id = ?", id).Delete(&HistoryEntryModel{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&ExpirationModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *GormExpirationRepo) Search(ctx context.Context, params SearchParams) ([]domain.Expiration, error) {
	query := r.db.WithContext(ctx).Model(&ExpirationModel{})

	if params.Text != "" {
		query = query.Where("concept LIKE ?", "%"+params.Text+"%")
	}
	if params.ResponsibleID != nil {
		query = query.Where("responsible_id = ?", *params.ResponsibleID)
	}
	if params.PriorityID != nil {
		query = query.Where("priority_id = ?", *params.PriorityID)
	}
	if params.SectorID != nil {
		query = query.Where("sector_id = ?", *params.SectorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("due_date >= ?", domain.DateOnly(*params.From))
	}
	if params.To != nil {
		query = query.Where("due_date <= ?", domain.DateOnly(*params.To))
	}

	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	var models []ExpirationModel
	err := query.Order("due_date ASC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}

	expirations := make([]domain.Expiration, 0, len(models))
	for i := range models {
		expirations = append(expirations, *expirationModelToDomain(&models[i]))
	}
	return expirations, nil
}

func (r *GormExpirationRepo) ListNonRenewed(ctx context.Context) ([]domain.Expiration, error) {
	var models []ExpirationModel
	err := r.db.WithContext(ctx).
		Where("status <> ?", domain.StatusRenewed).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	expirations := make([]domain.Expiration, 0, len(models))
	for i := range models {
		expirations = append(expirations, *expirationModelToDomain(&models[i]))
	}
	return expirations, nil
}

func (r *GormExpirationRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, entry *domain.HistoryEntry) error {
	entryModel := historyModelFromDomain(entry)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExpirationModel{}).
			Where("id = ?", id).
			Update("status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if entryModel != nil {
			if err := tx.Create(entryModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormExpirationRepo) Renew(ctx context.Context, current *domain.Expiration, replacement *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error {
	currentModel := expirationModelFromDomain(current)
	replacementModel := expirationModelFromDomain(replacement)
	ruleModel := ruleModelFromDomain(rule)
	entryModel := historyModelFromDomain(entry)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExpirationModel{}).
			Where("id = ? AND status <> ?", currentModel.ID, domain.StatusRenewed).
			Updates(map[string]any{
				"status": currentModel.Status,
				"notes":  currentModel.Notes,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Either missing or already renewed by a concurrent caller.
			var count int64
			if err := tx.Model(&ExpirationModel{}).Where("id = ?", currentModel.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrConflict
		}

		if err := tx.Create(replacementModel).Error; err != nil {
			return err
		}
		if ruleModel != nil {
			if err := tx.Create(ruleModel).Error; err != nil {
				return err
			}
		}
		if entryModel != nil {
			if err := tx.Create(entryModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	*replacement = *expirationModelToDomain(replacementModel)
	return nil
}

func (r *GormExpirationRepo) CountByStatus(ctx context.Context) ([]GroupCount, error) {
	var counts []GroupCount
	err := r.db.WithContext(ctx).
		Model(&ExpirationModel{}).
		Select("status AS name, COUNT(*) AS count").
		Group("status").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormExpirationRepo) CountByPriority(ctx context.Context) ([]GroupCount, error) {
	var counts []GroupCount
	err := r.db.WithContext(ctx).
		Table("priorities AS p").
		Select("p.name AS name, p.color AS color, COUNT(e.id) AS count").
		Joins("LEFT JOIN expirations e ON e.priority_id = p.id").
		Group("p.id, p.name, p.color").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormExpirationRepo) CountBySector(ctx context.Context) ([]GroupCount, error) {
	var counts []GroupCount
	err := r.db.WithContext(ctx).
		Table("sectors AS s").
		Select("s.name AS name, s.color AS color, COUNT(e.id) AS count").
		Joins("LEFT JOIN expirations e ON e.sector_id = s.id").
		Group("s.id, s.name, s.color").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormExpirationRepo) CountByResponsible(ctx context.Context, limit int) ([]GroupCount, error) {
	if limit < 1 {
		limit = 10
	}

	var counts []GroupCount
	err := r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.full_name AS name, COUNT(e.id) AS count").
		Joins("LEFT JOIN expirations e ON e.responsible_id = u.id").
		Group("u.id, u.full_name").
		Order("count DESC").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
