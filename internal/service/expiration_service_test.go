package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/calerio/duetrack/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func newTestExpirationService(t *testing.T, expirations *fakeExpirationRepo, history *fakeHistoryRepo, lookups *fakeLookupRepo) *ExpirationService {
	t.Helper()

	if expirations == nil {
		expirations = &fakeExpirationRepo{}
	}
	if history == nil {
		history = &fakeHistoryRepo{}
	}
	if lookups == nil {
		lookups = &fakeLookupRepo{}
	}

	svc, err := NewExpirationService(expirations, history, lookups, nil)
	if err != nil {
		t.Fatalf("NewExpirationService() error = %v", err)
	}
	return svc.WithNow(fixedNow)
}

func storedExpiration(status domain.Status, dueInDays int) *domain.Expiration {
	return &domain.Expiration{
		ID:            "exp-1",
		DueDate:       domain.DateOnly(fixedNow().AddDate(0, 0, dueInDays)),
		Concept:       "Insurance policy",
		ResponsibleID: "user-1",
		PriorityID:    "prio-1",
		SectorID:      "sector-1",
		Status:        status,
		Notes:         "initial note",
		CreatedBy:     "admin",
	}
}

func TestExpirationServiceCreateHappyPath(t *testing.T) {
	t.Parallel()

	var gotRule *domain.AlertRule
	var gotEntry *domain.HistoryEntry
	repo := &fakeExpirationRepo{
		createFn: func(_ context.Context, e *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error {
			if e.Status != domain.StatusPending {
				t.Fatalf("status = %s, want PENDING", e.Status)
			}
			if e.ID == "" {
				t.Fatal("id should be generated")
			}
			gotRule = rule
			gotEntry = entry
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	created, err := svc.Create(context.Background(), CreateParams{
		DueDate:       fixedNow().AddDate(0, 0, 60),
		Concept:       "Insurance policy",
		ResponsibleID: "user-1",
		PriorityID:    "prio-1",
		SectorID:      "sector-1",
		CreatedBy:     "admin",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created.Status != domain.StatusPending {
		t.Fatalf("created status = %s, want PENDING", created.Status)
	}
	if gotRule == nil {
		t.Fatal("default alert rule should be created")
	}
	if gotRule.OffsetDays != domain.DefaultOffsetDays || gotRule.MaxFires != domain.DefaultMaxFires {
		t.Fatalf("default rule = offset %d maxFires %d, want %d/%d",
			gotRule.OffsetDays, gotRule.MaxFires, domain.DefaultOffsetDays, domain.DefaultMaxFires)
	}
	if !gotRule.Email || !gotRule.Push || !gotRule.Desktop || !gotRule.Active {
		t.Fatal("default rule should enable every channel and be active")
	}
	if gotEntry == nil || gotEntry.Action != domain.ActionCreated {
		t.Fatalf("history entry = %+v, want Created action", gotEntry)
	}
	if gotEntry.ActorID == nil || *gotEntry.ActorID != "admin" {
		t.Fatalf("entry actor = %v, want admin", gotEntry.ActorID)
	}
}

func TestExpirationServiceCreateMissingFields(t *testing.T) {
	t.Parallel()

	svc := newTestExpirationService(t, nil, nil, nil)

	testCases := []struct {
		name   string
		params CreateParams
	}{
		{name: "missing due date", params: CreateParams{Concept: "c", ResponsibleID: "u", PriorityID: "p", SectorID: "s"}},
		{name: "missing concept", params: CreateParams{DueDate: fixedNow(), ResponsibleID: "u", PriorityID: "p", SectorID: "s"}},
		{name: "missing responsible", params: CreateParams{DueDate: fixedNow(), Concept: "c", PriorityID: "p", SectorID: "s"}},
		{name: "missing priority", params: CreateParams{DueDate: fixedNow(), Concept: "c", ResponsibleID: "u", SectorID: "s"}},
		{name: "missing sector", params: CreateParams{DueDate: fixedNow(), Concept: "c", ResponsibleID: "u", PriorityID: "p"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Create(context.Background(), tc.params)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestExpirationServiceCreateUnknownReference(t *testing.T) {
	t.Parallel()

	lookups := &fakeLookupRepo{
		getUserFn: func(_ context.Context, id string) (*domain.User, error) {
			return nil, domain.ErrNotFound
		},
	}
	svc := newTestExpirationService(t, nil, nil, lookups)

	_, err := svc.Create(context.Background(), CreateParams{
		DueDate:       fixedNow().AddDate(0, 0, 10),
		Concept:       "c",
		ResponsibleID: "ghost",
		PriorityID:    "p",
		SectorID:      "s",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestExpirationServiceUpdateDiffsFields(t *testing.T) {
	t.Parallel()

	var gotEntry *domain.HistoryEntry
	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusPending, 20), nil
		},
		updateFn: func(_ context.Context, e *domain.Expiration, entry *domain.HistoryEntry) error {
			gotEntry = entry
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	newConcept := "Fleet insurance"
	newDate := fixedNow().AddDate(0, 0, 45)
	updated, err := svc.Update(context.Background(), "exp-1", UpdateParams{
		Concept: &newConcept,
		DueDate: &newDate,
	}, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Concept != newConcept {
		t.Fatalf("concept = %q, want %q", updated.Concept, newConcept)
	}
	if gotEntry == nil || gotEntry.Action != domain.ActionUpdated {
		t.Fatalf("entry = %+v, want Updated action", gotEntry)
	}
	if !strings.Contains(gotEntry.Description, "concept") || !strings.Contains(gotEntry.Description, "due date") {
		t.Fatalf("description = %q, want both changed fields mentioned", gotEntry.Description)
	}
}

func TestExpirationServiceUpdateNoChangesStillLogged(t *testing.T) {
	t.Parallel()

	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusPending, 20), nil
		},
		updateFn: func(_ context.Context, e *domain.Expiration, entry *domain.HistoryEntry) error {
			t.Fatal("record should not be written on a no-op update")
			return nil
		},
	}

	var gotEntry *domain.HistoryEntry
	history := &fakeHistoryRepo{
		appendFn: func(_ context.Context, entry *domain.HistoryEntry) error {
			gotEntry = entry
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, history, nil)

	sameConcept := "Insurance policy"
	if _, err := svc.Update(context.Background(), "exp-1", UpdateParams{Concept: &sameConcept}, nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if gotEntry == nil || gotEntry.Description != "no changes detected" {
		t.Fatalf("entry = %+v, want \"no changes detected\"", gotEntry)
	}
}

func TestExpirationServiceUpdateStatusOnlySameStatusLogged(t *testing.T) {
	t.Parallel()

	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusOverdue, -5), nil
		},
	}

	var gotEntry *domain.HistoryEntry
	history := &fakeHistoryRepo{
		appendFn: func(_ context.Context, entry *domain.HistoryEntry) error {
			gotEntry = entry
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, history, nil)

	overdue := domain.StatusOverdue
	if _, err := svc.Update(context.Background(), "exp-1", UpdateParams{Status: &overdue}, nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if gotEntry == nil || gotEntry.Action != domain.ActionStatusChanged {
		t.Fatalf("entry = %+v, want StatusChanged action", gotEntry)
	}
	if !strings.Contains(gotEntry.Description, "OVERDUE -> OVERDUE") {
		t.Fatalf("description = %q, want identical from/to statuses", gotEntry.Description)
	}
}

func TestExpirationServiceRenewHappyPath(t *testing.T) {
	t.Parallel()

	var gotCurrent, gotReplacement *domain.Expiration
	var gotRule *domain.AlertRule
	var gotEntry *domain.HistoryEntry
	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusOverdue, -10), nil
		},
		renewFn: func(_ context.Context, current, replacement *domain.Expiration, rule *domain.AlertRule, entry *domain.HistoryEntry) error {
			gotCurrent = current
			gotReplacement = replacement
			gotRule = rule
			gotEntry = entry
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	newDate := fixedNow().AddDate(0, 0, 90)
	replacement, err := svc.Renew(context.Background(), "exp-1", newDate, "annual renewal", nil)
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}

	if gotCurrent.Status != domain.StatusRenewed {
		t.Fatalf("current status = %s, want RENEWED", gotCurrent.Status)
	}
	if !strings.Contains(gotCurrent.Notes, "[2026-03-10] Renewed: annual renewal") {
		t.Fatalf("current notes = %q, want renewal annotation", gotCurrent.Notes)
	}
	if replacement.Status != domain.StatusOverdue {
		t.Fatalf("replacement status = %s, want pre-renewal OVERDUE", replacement.Status)
	}
	if !replacement.DueDate.Equal(domain.DateOnly(newDate)) {
		t.Fatalf("replacement due date = %v, want %v", replacement.DueDate, domain.DateOnly(newDate))
	}
	if !strings.Contains(gotReplacement.Notes, "Continuation of expiration exp-1") {
		t.Fatalf("replacement notes = %q, want continuation back-reference", gotReplacement.Notes)
	}
	if gotRule == nil || gotRule.ExpirationID != replacement.ID {
		t.Fatal("replacement should get its own default alert rule")
	}
	if gotEntry == nil || gotEntry.Action != domain.ActionRenewed {
		t.Fatalf("entry = %+v, want Renewed action", gotEntry)
	}
}

func TestExpirationServiceRenewPastDateRejected(t *testing.T) {
	t.Parallel()

	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			t.Fatal("record should not be loaded when the date check fails")
			return nil, nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	yesterday := fixedNow().AddDate(0, 0, -1)
	_, err := svc.Renew(context.Background(), "exp-7", yesterday, "", nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Renew() error = %v, want ErrInvalidTransition", err)
	}

	_, err = svc.Renew(context.Background(), "exp-7", fixedNow(), "", nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Renew(today) error = %v, want ErrInvalidTransition", err)
	}
}

func TestExpirationServiceRenewAlreadyRenewed(t *testing.T) {
	t.Parallel()

	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusRenewed, 10), nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	_, err := svc.Renew(context.Background(), "exp-1", fixedNow().AddDate(0, 0, 30), "", nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Renew() error = %v, want ErrInvalidTransition", err)
	}
}

func TestExpirationServiceChangeStatus(t *testing.T) {
	t.Parallel()

	var gotStatus domain.Status
	var gotEntry *domain.HistoryEntry
	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusPending, 20), nil
		},
		updateStatusFn: func(_ context.Context, id string, status domain.Status, entry *domain.HistoryEntry) error {
			gotStatus = status
			gotEntry = entry
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	updated, err := svc.ChangeStatus(context.Background(), "exp-1", domain.StatusInProgress, "working on it", nil)
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if updated.Status != domain.StatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", updated.Status)
	}
	if gotStatus != domain.StatusInProgress {
		t.Fatalf("persisted status = %s, want IN_PROGRESS", gotStatus)
	}
	if !strings.Contains(gotEntry.Description, "PENDING -> IN_PROGRESS") {
		t.Fatalf("description = %q, want transition summary", gotEntry.Description)
	}
}

func TestExpirationServiceChangeStatusInvalidTransition(t *testing.T) {
	t.Parallel()

	repo := &fakeExpirationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Expiration, error) {
			return storedExpiration(domain.StatusOverdue, -5), nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	// Overdue -> Pending is not a legal manual transition.
	_, err := svc.ChangeStatus(context.Background(), "exp-1", domain.StatusPending, "", nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("ChangeStatus() error = %v, want ErrInvalidTransition", err)
	}

	// Renewed needs a future due date; this record is past due.
	_, err = svc.ChangeStatus(context.Background(), "exp-1", domain.StatusRenewed, "", nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("ChangeStatus(renewed) error = %v, want ErrInvalidTransition", err)
	}
}

func TestExpirationServiceReconcileBuckets(t *testing.T) {
	t.Parallel()

	stored := []domain.Expiration{
		*storedExpiration(domain.StatusOverdue, 10),    // inside window, must become Pending
		*storedExpiration(domain.StatusPending, -3),    // past due, must become Overdue
		*storedExpiration(domain.StatusInProgress, -3), // never touched
		*storedExpiration(domain.StatusPending, 15),    // already correct
		*storedExpiration(domain.StatusPending, 60),    // outside window, untouched
	}
	for i := range stored {
		stored[i].ID = string(rune('a' + i))
	}

	transitions := map[string]domain.Status{}
	repo := &fakeExpirationRepo{
		listNonRenewedFn: func(_ context.Context) ([]domain.Expiration, error) {
			return stored, nil
		},
		updateStatusFn: func(_ context.Context, id string, status domain.Status, entry *domain.HistoryEntry) error {
			transitions[id] = status
			if entry.ActorID != nil {
				t.Fatalf("reconciliation entry should have no actor, got %v", *entry.ActorID)
			}
			return nil
		},
	}

	svc := newTestExpirationService(t, repo, nil, nil)

	changed, err := svc.Reconcile(context.Background(), fixedNow())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	if transitions["a"] != domain.StatusPending {
		t.Fatalf("record a = %s, want PENDING", transitions["a"])
	}
	if transitions["b"] != domain.StatusOverdue {
		t.Fatalf("record b = %s, want OVERDUE", transitions["b"])
	}
	if _, touched := transitions["c"]; touched {
		t.Fatal("in-progress record must not be reconciled")
	}
	if _, touched := transitions["d"]; touched {
		t.Fatal("already-correct record must not be written")
	}
	if _, touched := transitions["e"]; touched {
		t.Fatal("record outside the window must not be written")
	}
}

func TestExpirationServiceHistoryUnknownID(t *testing.T) {
	t.Parallel()

	svc := newTestExpirationService(t, &fakeExpirationRepo{}, nil, nil)

	_, err := svc.History(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("History() error = %v, want ErrNotFound", err)
	}
}
