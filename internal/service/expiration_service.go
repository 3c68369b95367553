package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/observability"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// reconcileWindowDays bounds the "upcoming" bucket of the reconciliation
// sweep: records due within this many days are forced Pending.
const reconcileWindowDays = 30

// ExpirationService owns the expiration lifecycle: creation with the default
// alert rule, audited updates, renewal, status transitions and the periodic
// status reconciliation sweep.
type ExpirationService struct {
	expirations repository.ExpirationRepository
	history     repository.HistoryRepository
	lookups     repository.LookupRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

type CreateParams struct {
	DueDate       time.Time
	Concept       string
	ResponsibleID string
	PriorityID    string
	SectorID      string
	Notes         string
	CreatedBy     string
}

// UpdateParams carries a partial update; nil fields are left untouched.
type UpdateParams struct {
	DueDate       *time.Time
	Concept       *string
	ResponsibleID *string
	PriorityID    *string
	SectorID      *string
	Status        *domain.Status
	Notes         *string
}

// DashboardStats aggregates the grouped counts the dashboard renders.
type DashboardStats struct {
	ByStatus      []repository.GroupCount
	ByPriority    []repository.GroupCount
	BySector      []repository.GroupCount
	ByResponsible []repository.GroupCount
}

func NewExpirationService(
	expirations repository.ExpirationRepository,
	history repository.HistoryRepository,
	lookups repository.LookupRepository,
	logger *zap.Logger,
) (*ExpirationService, error) {
	if expirations == nil {
		return nil, fmt.Errorf("expiration repository is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history repository is required")
	}
	if lookups == nil {
		return nil, fmt.Errorf("lookup repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ExpirationService{
		expirations: expirations,
		history:     history,
		lookups:     lookups,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// WithNow overrides the clock. Test hook.
func (s *ExpirationService) WithNow(now func() time.Time) *ExpirationService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics attaches the Prometheus collectors; all metric calls are
// nil-safe so this stays optional.
func (s *ExpirationService) WithMetrics(metrics *observability.Metrics) *ExpirationService {
	s.metrics = metrics
	return s
}

func (s *ExpirationService) Create(ctx context.Context, params CreateParams) (*domain.Expiration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	expiration := &domain.Expiration{
		ID:            uuid.NewString(),
		DueDate:       domain.DateOnly(params.DueDate),
		Concept:       strings.TrimSpace(params.Concept),
		ResponsibleID: strings.TrimSpace(params.ResponsibleID),
		PriorityID:    strings.TrimSpace(params.PriorityID),
		SectorID:      strings.TrimSpace(params.SectorID),
		Status:        domain.StatusPending,
		Notes:         params.Notes,
		CreatedBy:     strings.TrimSpace(params.CreatedBy),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if params.DueDate.IsZero() {
		expiration.DueDate = time.Time{}
	}

	if err := expiration.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, expiration); err != nil {
		return nil, err
	}

	rule := domain.DefaultRule(expiration.ID)
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	entry := s.newEntry(expiration.ID, domain.ActionCreated,
		fmt.Sprintf("Created with due date %s", expiration.DueDate.Format(time.DateOnly)),
		params.Notes, actorOrNil(expiration.CreatedBy))

	if err := s.expirations.Create(ctx, expiration, &rule, entry); err != nil {
		return nil, err
	}

	s.logger.Info("expiration created",
		zap.String("expirationId", expiration.ID),
		zap.String("concept", expiration.Concept),
		zap.Time("dueDate", expiration.DueDate),
	)

	return expiration, nil
}

func (s *ExpirationService) GetByID(ctx context.Context, id string) (*domain.Expiration, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: expiration id is required", domain.ErrValidation)
	}
	return s.expirations.GetByID(ctx, strings.TrimSpace(id))
}

// Update applies a partial update and records a single Updated history entry
// summarizing every field that changed. A status-only update is delegated to
// ChangeStatus so the transition rules apply. An update that changes nothing
// still records a "no changes detected" entry.
func (s *ExpirationService) Update(ctx context.Context, id string, params UpdateParams, actor *string) (*domain.Expiration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if statusOnly(params) {
		return s.ChangeStatus(ctx, id, *params.Status, "", actor)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	changes := make([]string, 0, 7)

	if params.DueDate != nil {
		newDate := domain.DateOnly(*params.DueDate)
		if !newDate.Equal(domain.DateOnly(current.DueDate)) {
			changes = append(changes, fmt.Sprintf("due date: %s -> %s",
				current.DueDate.Format(time.DateOnly), newDate.Format(time.DateOnly)))
			updated.DueDate = newDate
		}
	}
	if params.Concept != nil && strings.TrimSpace(*params.Concept) != current.Concept {
		changes = append(changes, fmt.Sprintf("concept: %q -> %q", current.Concept, strings.TrimSpace(*params.Concept)))
		updated.Concept = strings.TrimSpace(*params.Concept)
	}
	if params.ResponsibleID != nil && *params.ResponsibleID != current.ResponsibleID {
		changes = append(changes, fmt.Sprintf("responsible: %s -> %s", current.ResponsibleID, *params.ResponsibleID))
		updated.ResponsibleID = *params.ResponsibleID
	}
	if params.PriorityID != nil && *params.PriorityID != current.PriorityID {
		changes = append(changes, fmt.Sprintf("priority: %s -> %s", current.PriorityID, *params.PriorityID))
		updated.PriorityID = *params.PriorityID
	}
	if params.SectorID != nil && *params.SectorID != current.SectorID {
		changes = append(changes, fmt.Sprintf("sector: %s -> %s", current.SectorID, *params.SectorID))
		updated.SectorID = *params.SectorID
	}
	if params.Status != nil && *params.Status != current.Status {
		if err := s.checkTransition(current, *params.Status); err != nil {
			return nil, err
		}
		changes = append(changes, fmt.Sprintf("status: %s -> %s", current.Status, *params.Status))
		updated.Status = *params.Status
	}
	if params.Notes != nil && *params.Notes != current.Notes {
		changes = append(changes, "notes updated")
		updated.Notes = *params.Notes
	}

	if len(changes) == 0 {
		entry := s.newEntry(current.ID, domain.ActionUpdated, "no changes detected", "", actor)
		if err := s.history.Append(ctx, entry); err != nil {
			return nil, err
		}
		return current, nil
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, &updated); err != nil {
		return nil, err
	}

	updated.UpdatedAt = s.now().UTC()
	entry := s.newEntry(current.ID, domain.ActionUpdated, strings.Join(changes, "; "), "", actor)

	if err := s.expirations.Update(ctx, &updated, entry); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (s *ExpirationService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: expiration id is required", domain.ErrValidation)
	}
	return s.expirations.Delete(ctx, strings.TrimSpace(id))
}

// Renew closes the current record and opens its continuation: the current
// record becomes Renewed with an annotated note, and a new record is created
// with the given due date, the same references, and the pre-renewal status.
// Both writes and the Renewed history entry are atomic.
func (s *ExpirationService) Renew(ctx context.Context, id string, newDate time.Time, notes string, actor *string) (*domain.Expiration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	today := domain.DateOnly(s.now())
	renewalDate := domain.DateOnly(newDate)
	if !renewalDate.After(today) {
		return nil, fmt.Errorf("%w: renewal date must be after today", domain.ErrInvalidTransition)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.StatusRenewed {
		return nil, fmt.Errorf("%w: expiration is already renewed", domain.ErrInvalidTransition)
	}

	priorStatus := current.Status
	now := s.now().UTC()

	annotation := fmt.Sprintf("[%s] Renewed", today.Format(time.DateOnly))
	if strings.TrimSpace(notes) != "" {
		annotation = fmt.Sprintf("%s: %s", annotation, strings.TrimSpace(notes))
	}
	current.Status = domain.StatusRenewed
	current.Notes = appendNote(current.Notes, annotation)
	current.UpdatedAt = now

	replacement := &domain.Expiration{
		ID:            uuid.NewString(),
		DueDate:       renewalDate,
		Concept:       current.Concept,
		ResponsibleID: current.ResponsibleID,
		PriorityID:    current.PriorityID,
		SectorID:      current.SectorID,
		Status:        priorStatus,
		Notes:         fmt.Sprintf("Continuation of expiration %s", current.ID),
		CreatedBy:     current.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	rule := domain.DefaultRule(replacement.ID)
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	entry := s.newEntry(current.ID, domain.ActionRenewed,
		fmt.Sprintf("Renewed until %s, continued as %s", renewalDate.Format(time.DateOnly), replacement.ID),
		notes, actor)

	if err := s.expirations.Renew(ctx, current, replacement, &rule, entry); err != nil {
		return nil, err
	}

	s.logger.Info("expiration renewed",
		zap.String("expirationId", current.ID),
		zap.String("replacementId", replacement.ID),
		zap.Time("newDueDate", renewalDate),
	)

	return replacement, nil
}

// ChangeStatus moves the record to newStatus and records a StatusChanged
// entry. Setting the current status again is a no-op that is still logged to
// the ledger; it short-circuits before any precondition check.
func (s *ExpirationService) ChangeStatus(ctx context.Context, id string, newStatus domain.Status, notes string, actor *string) (*domain.Expiration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, newStatus)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if newStatus == current.Status {
		entry := s.newEntry(current.ID, domain.ActionStatusChanged,
			fmt.Sprintf("Status unchanged: %s -> %s", current.Status, newStatus), notes, actor)
		if err := s.history.Append(ctx, entry); err != nil {
			return nil, err
		}
		return current, nil
	}

	if err := s.checkTransition(current, newStatus); err != nil {
		return nil, err
	}

	entry := s.newEntry(current.ID, domain.ActionStatusChanged,
		fmt.Sprintf("Status changed: %s -> %s", current.Status, newStatus), notes, actor)
	if err := s.expirations.UpdateStatus(ctx, current.ID, newStatus, entry); err != nil {
		return nil, err
	}

	current.Status = newStatus
	return current, nil
}

func (s *ExpirationService) Search(ctx context.Context, params repository.SearchParams) ([]domain.Expiration, error) {
	return s.expirations.Search(ctx, params)
}

// History returns the audit ledger for one expiration, newest first.
func (s *ExpirationService) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: expiration id is required", domain.ErrValidation)
	}
	if _, err := s.expirations.GetByID(ctx, strings.TrimSpace(id)); err != nil {
		return nil, err
	}
	return s.history.ListByExpiration(ctx, strings.TrimSpace(id))
}

func (s *ExpirationService) Stats(ctx context.Context) (*DashboardStats, error) {
	byStatus, err := s.expirations.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byPriority, err := s.expirations.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}
	bySector, err := s.expirations.CountBySector(ctx)
	if err != nil {
		return nil, err
	}
	byResponsible, err := s.expirations.CountByResponsible(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		ByStatus:      byStatus,
		ByPriority:    byPriority,
		BySector:      bySector,
		ByResponsible: byResponsible,
	}, nil
}

// Reconcile recomputes the status of every non-Renewed record from asOf:
// records due within the window are forced Pending, past-due records are
// forced Overdue. InProgress records are never touched; writes happen only
// when the computed status differs from the stored one. Returns the number of
// transitions written.
func (s *ExpirationService) Reconcile(ctx context.Context, asOf time.Time) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	expirations, err := s.expirations.ListNonRenewed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list expirations for reconciliation: %w", err)
	}

	changed := 0
	for i := range expirations {
		expiration := &expirations[i]
		if expiration.Status == domain.StatusInProgress {
			continue
		}

		days := expiration.DaysUntil(asOf)
		var target domain.Status
		switch {
		case days >= 0 && days <= reconcileWindowDays:
			target = domain.StatusPending
		case days < 0:
			target = domain.StatusOverdue
		default:
			continue
		}
		if target == expiration.Status {
			continue
		}

		entry := s.newEntry(expiration.ID, domain.ActionStatusChanged,
			fmt.Sprintf("Status reconciled: %s -> %s", expiration.Status, target), "", nil)
		if err := s.expirations.UpdateStatus(ctx, expiration.ID, target, entry); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.logger.Error("reconciliation update failed",
				zap.String("expirationId", expiration.ID),
				zap.Error(err),
			)
			continue
		}
		changed++
		s.metrics.IncReconcileTransition(target.String())
	}

	if changed > 0 {
		s.logger.Info("reconciliation sweep finished",
			zap.Int("transitions", changed),
			zap.Int("scanned", len(expirations)),
		)
	}

	return changed, nil
}

func (s *ExpirationService) checkTransition(current *domain.Expiration, next domain.Status) error {
	if next == domain.StatusRenewed {
		if !domain.DateOnly(current.DueDate).After(domain.DateOnly(s.now())) {
			return fmt.Errorf("%w: cannot mark renewed with a due date not in the future", domain.ErrInvalidTransition)
		}
	}
	if !current.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next)
	}
	return nil
}

func (s *ExpirationService) checkReferences(ctx context.Context, e *domain.Expiration) error {
	if _, err := s.lookups.GetUser(ctx, e.ResponsibleID); err != nil {
		return referenceError("responsible", e.ResponsibleID, err)
	}
	if _, err := s.lookups.GetPriority(ctx, e.PriorityID); err != nil {
		return referenceError("priority", e.PriorityID, err)
	}
	if _, err := s.lookups.GetSector(ctx, e.SectorID); err != nil {
		return referenceError("sector", e.SectorID, err)
	}
	return nil
}

func (s *ExpirationService) newEntry(expirationID string, action domain.ActionType, description string, notes string, actor *string) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:           uuid.NewString(),
		ExpirationID: expirationID,
		Action:       action,
		Description:  description,
		Notes:        notes,
		ActorID:      actor,
		CreatedAt:    s.now().UTC(),
	}
}

func statusOnly(params UpdateParams) bool {
	return params.Status != nil &&
		params.DueDate == nil &&
		params.Concept == nil &&
		params.ResponsibleID == nil &&
		params.PriorityID == nil &&
		params.SectorID == nil &&
		params.Notes == nil
}

func referenceError(field string, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: unknown %s %q", domain.ErrValidation, field, id)
	}
	return err
}

func appendNote(existing string, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}

func actorOrNil(actor string) *string {
	trimmed := strings.TrimSpace(actor)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
