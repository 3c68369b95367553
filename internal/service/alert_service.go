package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertService manages the reminder rules attached to expirations and the
// attempt ledger below them.
type AlertService struct {
	rules       repository.AlertRuleRepository
	attempts    repository.AttemptRepository
	expirations repository.ExpirationRepository
	logger      *zap.Logger
	now         func() time.Time
}

// RuleParams describes a new rule. Zero offsets are valid (fire on the due
// day itself); MaxFires defaults when unset.
type RuleParams struct {
	ExpirationID string
	OffsetDays   int
	MaxFires     int
	Email        bool
	Push         bool
	Desktop      bool
	Active       bool
}

func NewAlertService(
	rules repository.AlertRuleRepository,
	attempts repository.AttemptRepository,
	expirations repository.ExpirationRepository,
	logger *zap.Logger,
) (*AlertService, error) {
	if rules == nil {
		return nil, fmt.Errorf("alert rule repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if expirations == nil {
		return nil, fmt.Errorf("expiration repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AlertService{
		rules:       rules,
		attempts:    attempts,
		expirations: expirations,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *AlertService) AddRule(ctx context.Context, params RuleParams) (*domain.AlertRule, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.expirations.GetByID(ctx, strings.TrimSpace(params.ExpirationID)); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule := &domain.AlertRule{
		ID:           uuid.NewString(),
		ExpirationID: strings.TrimSpace(params.ExpirationID),
		OffsetDays:   params.OffsetDays,
		MaxFires:     params.MaxFires,
		Email:        params.Email,
		Push:         params.Push,
		Desktop:      params.Desktop,
		Active:       params.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rule.MaxFires == 0 {
		rule.MaxFires = domain.DefaultMaxFires
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("alert rule added",
		zap.String("ruleId", rule.ID),
		zap.String("expirationId", rule.ExpirationID),
		zap.Int("offsetDays", rule.OffsetDays),
	)

	return rule, nil
}

func (s *AlertService) GetRule(ctx context.Context, id string) (*domain.AlertRule, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	return s.rules.GetByID(ctx, strings.TrimSpace(id))
}

// UpdateRule applies a partial update; fields left nil keep their stored
// value. The fired counter is not updatable through this path.
func (s *AlertService) UpdateRule(ctx context.Context, id string, update repository.RuleUpdate) (*domain.AlertRule, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	if update.OffsetDays != nil && *update.OffsetDays < 0 {
		return nil, fmt.Errorf("%w: offset days must be non-negative", domain.ErrValidation)
	}
	if update.MaxFires != nil && *update.MaxFires <= 0 {
		return nil, fmt.Errorf("%w: max fires must be positive", domain.ErrValidation)
	}
	return s.rules.Update(ctx, strings.TrimSpace(id), update)
}

func (s *AlertService) RemoveRule(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	return s.rules.Delete(ctx, strings.TrimSpace(id))
}

func (s *AlertService) ListRules(ctx context.Context, expirationID string) ([]domain.AlertRule, error) {
	if strings.TrimSpace(expirationID) == "" {
		return nil, fmt.Errorf("%w: expiration id is required", domain.ErrValidation)
	}
	if _, err := s.expirations.GetByID(ctx, strings.TrimSpace(expirationID)); err != nil {
		return nil, err
	}
	return s.rules.ListByExpiration(ctx, strings.TrimSpace(expirationID))
}

// ResetRule zeroes the fired counter so an exhausted rule can fire again.
func (s *AlertService) ResetRule(ctx context.Context, id string) (*domain.AlertRule, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	if err := s.rules.ResetFiredCount(ctx, strings.TrimSpace(id)); err != nil {
		return nil, err
	}
	return s.rules.GetByID(ctx, strings.TrimSpace(id))
}

// ListAttempts returns the dispatch history of one rule, newest first.
func (s *AlertService) ListAttempts(ctx context.Context, ruleID string) ([]domain.AlertAttempt, error) {
	if strings.TrimSpace(ruleID) == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrValidation)
	}
	if _, err := s.rules.GetByID(ctx, strings.TrimSpace(ruleID)); err != nil {
		return nil, err
	}
	return s.attempts.ListByRule(ctx, strings.TrimSpace(ruleID))
}
