package service

import (
	"context"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/repository"
)

type fakeExpirationRepo struct {
	createFn         func(ctx context.Context, e *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error
	getByIDFn        func(ctx context.Context, id string) (*domain.Expiration, error)
	updateFn         func(ctx context.Context, e *domain.Expiration, entry *domain.HistoryEntry) error
	deleteFn         func(ctx context.Context, id string) error
	searchFn         func(ctx context.Context, params repository.SearchParams) ([]domain.Expiration, error)
	listNonRenewedFn func(ctx context.Context) ([]domain.Expiration, error)
	updateStatusFn   func(ctx context.Context, id string, status domain.Status, entry *domain.HistoryEntry) error
	renewFn          func(ctx context.Context, current, replacement *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error
}

func (f *fakeExpirationRepo) Create(ctx context.Context, e *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error {
	if f.createFn != nil {
		return f.createFn(ctx, e, rule, entry)
	}
	return nil
}

func (f *fakeExpirationRepo) GetByID(ctx context.Context, id string) (*domain.Expiration, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeExpirationRepo) Update(ctx context.Context, e *domain.Expiration, entry *domain.HistoryEntry) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, e, entry)
	}
	return nil
}

func (f *fakeExpirationRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeExpirationRepo) Search(ctx context.Context, params repository.SearchParams) ([]domain.Expiration, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeExpirationRepo) ListNonRenewed(ctx context.Context) ([]domain.Expiration, error) {
	if f.listNonRenewedFn != nil {
		return f.listNonRenewedFn(ctx)
	}
	return nil, nil
}

func (f *fakeExpirationRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, entry *domain.HistoryEntry) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status, entry)
	}
	return nil
}

func (f *fakeExpirationRepo) Renew(ctx context.Context, current, replacement *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error {
	if f.renewFn != nil {
		return f.renewFn(ctx, current, replacement, rule, entry)
	}
	return nil
}

func (f *fakeExpirationRepo) CountByStatus(ctx context.Context) ([]repository.GroupCount, error) {
	return nil, nil
}

func (f *fakeExpirationRepo) CountByPriority(ctx context.Context) ([]repository.GroupCount, error) {
	return nil, nil
}

func (f *fakeExpirationRepo) CountBySector(ctx context.Context) ([]repository.GroupCount, error) {
	return nil, nil
}

func (f *fakeExpirationRepo) CountByResponsible(ctx context.Context, limit int) ([]repository.GroupCount, error) {
	return nil, nil
}

type fakeHistoryRepo struct {
	appendFn           func(ctx context.Context, entry *domain.HistoryEntry) error
	listByExpirationFn func(ctx context.Context, expirationID string) ([]domain.HistoryEntry, error)
}

func (f *fakeHistoryRepo) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, entry)
	}
	return nil
}

func (f *fakeHistoryRepo) ListByExpiration(ctx context.Context, expirationID string) ([]domain.HistoryEntry, error) {
	if f.listByExpirationFn != nil {
		return f.listByExpirationFn(ctx, expirationID)
	}
	return nil, nil
}

type fakeLookupRepo struct {
	getUserFn     func(ctx context.Context, id string) (*domain.User, error)
	getPriorityFn func(ctx context.Context, id string) (*domain.Priority, error)
	getSectorFn   func(ctx context.Context, id string) (*domain.Sector, error)
}

func (f *fakeLookupRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, id)
	}
	return &domain.User{ID: id, Username: "user", FullName: "Test User", Email: "user@example.com"}, nil
}

func (f *fakeLookupRepo) GetPriority(ctx context.Context, id string) (*domain.Priority, error) {
	if f.getPriorityFn != nil {
		return f.getPriorityFn(ctx, id)
	}
	return &domain.Priority{ID: id, Name: "High", Color: "#ff0000"}, nil
}

func (f *fakeLookupRepo) GetSector(ctx context.Context, id string) (*domain.Sector, error) {
	if f.getSectorFn != nil {
		return f.getSectorFn(ctx, id)
	}
	return &domain.Sector{ID: id, Name: "Legal", Color: "#00ff00"}, nil
}

func (f *fakeLookupRepo) ListPriorities(ctx context.Context) ([]domain.Priority, error) {
	return nil, nil
}

func (f *fakeLookupRepo) ListSectors(ctx context.Context) ([]domain.Sector, error) {
	return nil, nil
}

type fakeAlertRuleRepo struct {
	createFn           func(ctx context.Context, rule *domain.AlertRule) error
	getByIDFn          func(ctx context.Context, id string) (*domain.AlertRule, error)
	updateFn           func(ctx context.Context, id string, update repository.RuleUpdate) (*domain.AlertRule, error)
	deleteFn           func(ctx context.Context, id string) error
	listByExpirationFn func(ctx context.Context, expirationID string) ([]domain.AlertRule, error)
	dueRulesFn         func(ctx context.Context, asOf time.Time, mode repository.MatchMode) ([]repository.DueRule, error)
	incrementFiredFn   func(ctx context.Context, id string, snapshot int) (bool, error)
	decrementFiredFn   func(ctx context.Context, id string, fromCount int) (bool, error)
	resetFiredCountFn  func(ctx context.Context, id string) error
}

func (f *fakeAlertRuleRepo) Create(ctx context.Context, rule *domain.AlertRule) error {
	if f.createFn != nil {
		return f.createFn(ctx, rule)
	}
	return nil
}

func (f *fakeAlertRuleRepo) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAlertRuleRepo) Update(ctx context.Context, id string, update repository.RuleUpdate) (*domain.AlertRule, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, update)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAlertRuleRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeAlertRuleRepo) ListByExpiration(ctx context.Context, expirationID string) ([]domain.AlertRule, error) {
	if f.listByExpirationFn != nil {
		return f.listByExpirationFn(ctx, expirationID)
	}
	return nil, nil
}

func (f *fakeAlertRuleRepo) DueRules(ctx context.Context, asOf time.Time, mode repository.MatchMode) ([]repository.DueRule, error) {
	if f.dueRulesFn != nil {
		return f.dueRulesFn(ctx, asOf, mode)
	}
	return nil, nil
}

func (f *fakeAlertRuleRepo) IncrementFiredCount(ctx context.Context, id string, snapshot int) (bool, error) {
	if f.incrementFiredFn != nil {
		return f.incrementFiredFn(ctx, id, snapshot)
	}
	return true, nil
}

func (f *fakeAlertRuleRepo) DecrementFiredCount(ctx context.Context, id string, fromCount int) (bool, error) {
	if f.decrementFiredFn != nil {
		return f.decrementFiredFn(ctx, id, fromCount)
	}
	return true, nil
}

func (f *fakeAlertRuleRepo) ResetFiredCount(ctx context.Context, id string) error {
	if f.resetFiredCountFn != nil {
		return f.resetFiredCountFn(ctx, id)
	}
	return nil
}

type fakeAttemptRepo struct {
	createFn     func(ctx context.Context, a *domain.AlertAttempt) error
	listByRuleFn func(ctx context.Context, ruleID string) ([]domain.AlertAttempt, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.AlertAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) ListByRule(ctx context.Context, ruleID string) ([]domain.AlertAttempt, error) {
	if f.listByRuleFn != nil {
		return f.listByRuleFn(ctx, ruleID)
	}
	return nil, nil
}
