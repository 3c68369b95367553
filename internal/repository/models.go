package repository

import (
	"time"

	"github.com/calerio/duetrack/internal/domain"
)

// ExpirationModel is the persistence model for the expirations table.
type ExpirationModel struct {
	ID            string        `gorm:"type:uuid;primaryKey"`
	DueDate       time.Time     `gorm:"not null;index"`
	Concept       string        `gorm:"type:varchar(255);not null"`
	ResponsibleID string        `gorm:"type:uuid;not null;index"`
	PriorityID    string        `gorm:"type:uuid;not null"`
	SectorID      string        `gorm:"type:uuid;not null"`
	Status        domain.Status `gorm:"type:varchar(20);not null;index"`
	Notes         string        `gorm:"type:text"`
	CreatedBy     string        `gorm:"type:uuid"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ExpirationModel) TableName() string {
	return "expirations"
}

// AlertRuleModel is the persistence model for alert_rules. Rows are
// cascade-deleted with their parent expiration.
type AlertRuleModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	ExpirationID string `gorm:"type:uuid;not null;index"`
	OffsetDays   int    `gorm:"not null;default:30"`
	FiredCount   int    `gorm:"not null;default:0"`
	MaxFires     int    `gorm:"not null;default:3"`
	Email        bool   `gorm:"not null;default:true"`
	Push         bool   `gorm:"not null;default:true"`
	Desktop      bool   `gorm:"not null;default:true"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AlertRuleModel) TableName() string {
	return "alert_rules"
}

// AlertAttemptModel is the persistence model for alert_attempts.
type AlertAttemptModel struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	RuleID      string         `gorm:"type:uuid;not null;index"`
	Channel     domain.Channel `gorm:"type:varchar(10);not null"`
	Outcome     domain.Outcome `gorm:"type:varchar(10);not null"`
	ErrorDetail *string        `gorm:"type:text"`
	CreatedAt   time.Time
}

func (AlertAttemptModel) TableName() string {
	return "alert_attempts"
}

// HistoryEntryModel is the persistence model for expiration_history. The
// table is append-only; no update or delete path exists in this package.
type HistoryEntryModel struct {
	ID           string            `gorm:"type:uuid;primaryKey"`
	ExpirationID string            `gorm:"type:uuid;not null;index"`
	Action       domain.ActionType `gorm:"type:varchar(20);not null"`
	Description  string            `gorm:"type:varchar(255);not null"`
	Notes        string            `gorm:"type:text"`
	ActorID      *string           `gorm:"type:uuid"`
	CreatedAt    time.Time
}

func (HistoryEntryModel) TableName() string {
	return "expiration_history"
}

// UserModel is the persistence model for users (responsible parties).
type UserModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Username  string `gorm:"type:varchar(100);not null"`
	FullName  string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// PriorityModel is the persistence model for the priorities lookup table.
type PriorityModel struct {
	ID    string `gorm:"type:uuid;primaryKey"`
	Name  string `gorm:"type:varchar(100);not null;unique"`
	Color string `gorm:"type:varchar(7);not null"`
}

func (PriorityModel) TableName() string {
	return "priorities"
}

// SectorModel is the persistence model for the sectors lookup table.
type SectorModel struct {
	ID    string `gorm:"type:uuid;primaryKey"`
	Name  string `gorm:"type:varchar(100);not null;unique"`
	Color string `gorm:"type:varchar(7);not null"`
}

func (SectorModel) TableName() string {
	return "sectors"
}

func expirationModelFromDomain(e *domain.Expiration) *ExpirationModel {
	if e == nil {
		return nil
	}

	return &ExpirationModel{
		ID:            e.ID,
		DueDate:       domain.DateOnly(e.DueDate),
		Concept:       e.Concept,
		ResponsibleID: e.ResponsibleID,
		PriorityID:    e.PriorityID,
		SectorID:      e.SectorID,
		Status:        e.Status,
		Notes:         e.Notes,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func expirationModelToDomain(m *ExpirationModel) *domain.Expiration {
	if m == nil {
		return nil
	}

	return &domain.Expiration{
		ID:            m.ID,
		DueDate:       domain.DateOnly(m.DueDate),
		Concept:       m.Concept,
		ResponsibleID: m.ResponsibleID,
		PriorityID:    m.PriorityID,
		SectorID:      m.SectorID,
		Status:        m.Status,
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func ruleModelFromDomain(r *domain.AlertRule) *AlertRuleModel {
	if r == nil {
		return nil
	}

	return &AlertRuleModel{
		ID:           r.ID,
		ExpirationID: r.ExpirationID,
		OffsetDays:   r.OffsetDays,
		FiredCount:   r.FiredCount,
		MaxFires:     r.MaxFires,
		Email:        r.Email,
		Push:         r.Push,
		Desktop:      r.Desktop,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func ruleModelToDomain(m *AlertRuleModel) *domain.AlertRule {
	if m == nil {
		return nil
	}

	return &domain.AlertRule{
		ID:           m.ID,
		ExpirationID: m.ExpirationID,
		OffsetDays:   m.OffsetDays,
		FiredCount:   m.FiredCount,
		MaxFires:     m.MaxFires,
		Email:        m.Email,
		Push:         m.Push,
		Desktop:      m.Desktop,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.AlertAttempt) *AlertAttemptModel {
	if a == nil {
		return nil
	}

	return &AlertAttemptModel{
		ID:          a.ID,
		RuleID:      a.RuleID,
		Channel:     a.Channel,
		Outcome:     a.Outcome,
		ErrorDetail: a.ErrorDetail,
		CreatedAt:   a.CreatedAt,
	}
}

func attemptModelToDomain(m *AlertAttemptModel) *domain.AlertAttempt {
	if m == nil {
		return nil
	}

	return &domain.AlertAttempt{
		ID:          m.ID,
		RuleID:      m.RuleID,
		Channel:     m.Channel,
		Outcome:     m.Outcome,
		ErrorDetail: m.ErrorDetail,
		CreatedAt:   m.CreatedAt,
	}
}

func historyModelFromDomain(h *domain.HistoryEntry) *HistoryEntryModel {
	if h == nil {
		return nil
	}

	return &HistoryEntryModel{
		ID:           h.ID,
		ExpirationID: h.ExpirationID,
		Action:       h.Action,
		Description:  h.Description,
		Notes:        h.Notes,
		ActorID:      h.ActorID,
		CreatedAt:    h.CreatedAt,
	}
}

func historyModelToDomain(m *HistoryEntryModel) *domain.HistoryEntry {
	if m == nil {
		return nil
	}

	return &domain.HistoryEntry{
		ID:           m.ID,
		ExpirationID: m.ExpirationID,
		Action:       m.Action,
		Description:  m.Description,
		Notes:        m.Notes,
		ActorID:      m.ActorID,
		CreatedAt:    m.CreatedAt,
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:       m.ID,
		Username: m.Username,
		FullName: m.FullName,
		Email:    m.Email,
	}
}

func priorityModelToDomain(m *PriorityModel) *domain.Priority {
	if m == nil {
		return nil
	}
	return &domain.Priority{ID: m.ID, Name: m.Name, Color: m.Color}
}

func sectorModelToDomain(m *SectorModel) *domain.Sector {
	if m == nil {
		return nil
	}
	return &domain.Sector{ID: m.ID, Name: m.Name, Color: m.Color}
}
