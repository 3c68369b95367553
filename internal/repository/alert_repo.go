package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"gorm.io/gorm"
)

// MatchMode selects how DueRules compares remaining days to a rule's offset.
type MatchMode string

const (
	// MatchExact fires a rule only on the day daysUntil == offsetDays.
	MatchExact MatchMode = "exact"
	// MatchAtOrPast fires once the offset day has been reached or passed,
	// while the due date itself has not.
	MatchAtOrPast MatchMode = "at_or_past"
)

func ParseMatchMode(s string) (MatchMode, error) {
	mode := MatchMode(strings.ToLower(strings.TrimSpace(s)))
	switch mode {
	case "", MatchExact:
		return MatchExact, nil
	case MatchAtOrPast:
		return MatchAtOrPast, nil
	}
	return "", fmt.Errorf("%w: invalid match mode %q", domain.ErrValidation, s)
}

// DueRule pairs a due alert rule with its parent expiration, both read in
// the same snapshot.
type DueRule struct {
	Rule       domain.AlertRule
	Expiration domain.Expiration
}

// RuleUpdate carries a partial alert rule update. Nil fields keep their
// stored value.
type RuleUpdate struct {
	OffsetDays *int
	MaxFires   *int
	Email      *bool
	Push       *bool
	Desktop    *bool
	Active     *bool
}

// ResetFiredCount support: setting FiredCount back to zero reactivates a
// dormant rule; exposed as its own method rather than a RuleUpdate field so
// partial updates can never race the dispatch counter.
type AlertRuleRepository interface {
	Create(ctx context.Context, r *domain.AlertRule) error
	GetByID(ctx context.Context, id string) (*domain.AlertRule, error)
	Update(ctx context.Context, id string, update RuleUpdate) (*domain.AlertRule, error)
	Delete(ctx context.Context, id string) error
	ListByExpiration(ctx context.Context, expirationID string) ([]domain.AlertRule, error)
	// DueRules returns every active rule with remaining budget whose parent
	// is not Renewed and whose offset matches asOf under mode. The read is
	// one joined snapshot query.
	DueRules(ctx context.Context, asOf time.Time, mode MatchMode) ([]DueRule, error)
	// IncrementFiredCount bumps the counter only if it still equals
	// snapshot and the budget is not exhausted. Returns false when a
	// concurrent pass already consumed the slot.
	IncrementFiredCount(ctx context.Context, id string, snapshot int) (bool, error)
	// DecrementFiredCount refunds one budget unit, but only while the
	// counter still equals fromCount. Returns false when another pass moved
	// the counter first; the claim then stays consumed.
	DecrementFiredCount(ctx context.Context, id string, fromCount int) (bool, error)
	ResetFiredCount(ctx context.Context, id string) error
}

type GormAlertRuleRepo struct {
	db *gorm.DB
}

func NewGormAlertRuleRepo(db *gorm.DB) *GormAlertRuleRepo {
	return &GormAlertRuleRepo{db: db}
}

func (r *GormAlertRuleRepo) Create(ctx context.Context, rule *domain.AlertRule) error {
	model := ruleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if rule != nil {
		*rule = *ruleModelToDomain(model)
	}
	return nil
}

func (r *GormAlertRuleRepo) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	var model AlertRuleModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ruleModelToDomain(&model), nil
}

func (r *GormAlertRuleRepo) Update(ctx context.Context, id string, update RuleUpdate) (*domain.AlertRule, error) {
	fields := map[string]any{}
	if update.OffsetDays != nil {
		fields["offset_days"] = *update.OffsetDays
	}
	if update.MaxFires != nil {
		fields["max_fires"] = *update.MaxFires
	}
	if update.Email != nil {
		fields["email"] = *update.Email
	}
	if update.Push != nil {
		fields["push"] = *update.Push
	}
	if update.Desktop != nil {
		fields["desktop"] = *update.Desktop
	}
	if update.Active != nil {
		fields["active"] = *update.Active
	}

	if len(fields) > 0 {
		result := r.db.WithContext(ctx).
			Model(&AlertRuleModel{}).
			Where("id = ?", id).
			Updates(fields)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, domain.ErrNotFound
		}
	}

	return r.GetByID(ctx, id)
}

func (r *GormAlertRuleRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&AlertAttemptModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&AlertRuleModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *GormAlertRuleRepo) ListByExpiration(ctx context.Context, expirationID string) ([]domain.AlertRule, error) {
	var models []AlertRuleModel
	err := r.db.WithContext(ctx).
		Where("expiration_id = ?", expirationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	rules := make([]domain.AlertRule, 0, len(models))
	for i := range models {
		rules = append(rules, *ruleModelToDomain(&models[i]))
	}
	return rules, nil
}

// dueRuleRow is the flat scan target for the joined due-rule snapshot.
type dueRuleRow struct {
	ID               string        `gorm:"column:id"`
	ExpirationID     string        `gorm:"column:expiration_id"`
	OffsetDays       int           `gorm:"column:offset_days"`
	FiredCount       int           `gorm:"column:fired_count"`
	MaxFires         int           `gorm:"column:max_fires"`
	Email            bool          `gorm:"column:email"`
	Push             bool          `gorm:"column:push"`
	Desktop          bool          `gorm:"column:desktop"`
	Active           bool          `gorm:"column:active"`
	CreatedAt        time.Time     `gorm:"column:created_at"`
	UpdatedAt        time.Time     `gorm:"column:updated_at"`
	ExpID            string        `gorm:"column:exp_id"`
	ExpDueDate       time.Time     `gorm:"column:exp_due_date"`
	ExpConcept       string        `gorm:"column:exp_concept"`
	ExpResponsibleID string        `gorm:"column:exp_responsible_id"`
	ExpPriorityID    string        `gorm:"column:exp_priority_id"`
	ExpSectorID      string        `gorm:"column:exp_sector_id"`
	ExpStatus        domain.Status `gorm:"column:exp_status"`
	ExpNotes         string        `gorm:"column:exp_notes"`
	ExpCreatedBy     string        `gorm:"column:exp_created_by"`
}

func (r *GormAlertRuleRepo) DueRules(ctx context.Context, asOf time.Time, mode MatchMode) ([]DueRule, error) {
	var rows []dueRuleRow
	err := r.db.WithContext(ctx).
		Table("alert_rules AS r").
		Select("r.*, "+
			"e.id AS exp_id, e.due_date AS exp_due_date, e.concept AS exp_concept, "+
			"e.responsible_id AS exp_responsible_id, e.priority_id AS exp_priority_id, "+
			"e.sector_id AS exp_sector_id, e.status AS exp_status, e.notes AS exp_notes, "+
			"e.created_by AS exp_created_by").
		Joins("JOIN expirations e ON e.id = r.expiration_id").
		Where("r.active = ? AND r.fired_count < r.max_fires AND e.status <> ?", true, domain.StatusRenewed).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// The day predicate is evaluated here rather than in SQL: MySQL's
	// DATEDIFF has no portable equivalent across the postgres and sqlite
	// dialects this repo runs against.
	due := make([]DueRule, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		exp := domain.Expiration{
			ID:            row.ExpID,
			DueDate:       domain.DateOnly(row.ExpDueDate),
			Concept:       row.ExpConcept,
			ResponsibleID: row.ExpResponsibleID,
			PriorityID:    row.ExpPriorityID,
			SectorID:      row.ExpSectorID,
			Status:        row.ExpStatus,
			Notes:         row.ExpNotes,
			CreatedBy:     row.ExpCreatedBy,
		}

		days := exp.DaysUntil(asOf)
		matched := false
		switch mode {
		case MatchAtOrPast:
			matched = days >= 0 && days <= row.OffsetDays
		default:
			matched = days == row.OffsetDays
		}
		if !matched {
			continue
		}

		due = append(due, DueRule{
			Rule: domain.AlertRule{
				ID:           row.ID,
				ExpirationID: row.ExpirationID,
				OffsetDays:   row.OffsetDays,
				FiredCount:   row.FiredCount,
				MaxFires:     row.MaxFires,
				Email:        row.Email,
				Push:         row.Push,
				Desktop:      row.Desktop,
				Active:       row.Active,
				CreatedAt:    row.CreatedAt,
				UpdatedAt:    row.UpdatedAt,
			},
			Expiration: exp,
		})
	}

	return due, nil
}

func (r *GormAlertRuleRepo) IncrementFiredCount(ctx context.Context, id string, snapshot int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&AlertRuleModel{}).
		Where("id = ? AND fired_count = ? AND fired_count < max_fires", id, snapshot).
		Update("fired_count", gorm.Expr("fired_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormAlertRuleRepo) DecrementFiredCount(ctx context.Context, id string, fromCount int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&AlertRuleModel{}).
		Where("id = ? AND fired_count = ? AND fired_count > 0", id, fromCount).
		Update("fired_count", gorm.Expr("fired_count - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormAlertRuleRepo) ResetFiredCount(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&AlertRuleModel{}).
		Where("id = ?", id).
		Update("fired_count", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
