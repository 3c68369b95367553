package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/calerio/duetrack/internal/service"
	"github.com/calerio/duetrack/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubExpirationService struct {
	createFn       func(ctx context.Context, params service.CreateParams) (*domain.Expiration, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Expiration, error)
	updateFn       func(ctx context.Context, id string, params service.UpdateParams, actor *string) (*domain.Expiration, error)
	deleteFn       func(ctx context.Context, id string) error
	renewFn        func(ctx context.Context, id string, newDate time.Time, notes string, actor *string) (*domain.Expiration, error)
	changeStatusFn func(ctx context.Context, id string, status domain.Status, notes string, actor *string) (*domain.Expiration, error)
	searchFn       func(ctx context.Context, params repository.SearchParams) ([]domain.Expiration, error)
	historyFn      func(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	statsFn        func(ctx context.Context) (*service.DashboardStats, error)
}

func (s *stubExpirationService) Create(ctx context.Context, params service.CreateParams) (*domain.Expiration, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return nil, domain.ErrNotFound
}

func (s *stubExpirationService) GetByID(ctx context.Context, id string) (*domain.Expiration, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubExpirationService) Update(ctx context.Context, id string, params service.UpdateParams, actor *string) (*domain.Expiration, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, params, actor)
	}
	return nil, domain.ErrNotFound
}

func (s *stubExpirationService) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return domain.ErrNotFound
}

func (s *stubExpirationService) Renew(ctx context.Context, id string, newDate time.Time, notes string, actor *string) (*domain.Expiration, error) {
	if s.renewFn != nil {
		return s.renewFn(ctx, id, newDate, notes, actor)
	}
	return nil, domain.ErrNotFound
}

func (s *stubExpirationService) ChangeStatus(ctx context.Context, id string, status domain.Status, notes string, actor *string) (*domain.Expiration, error) {
	if s.changeStatusFn != nil {
		return s.changeStatusFn(ctx, id, status, notes, actor)
	}
	return nil, domain.ErrNotFound
}

func (s *stubExpirationService) Search(ctx context.Context, params repository.SearchParams) ([]domain.Expiration, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, params)
	}
	return nil, nil
}

func (s *stubExpirationService) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, id)
	}
	return nil, nil
}

func (s *stubExpirationService) Stats(ctx context.Context) (*service.DashboardStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return &service.DashboardStats{}, nil
}

func sampleExpiration() *domain.Expiration {
	return &domain.Expiration{
		ID:            "exp-1",
		DueDate:       domain.DateOnly(time.Now().AddDate(0, 0, 30)),
		Concept:       "Insurance policy",
		ResponsibleID: "user-1",
		PriorityID:    "prio-1",
		SectorID:      "sector-1",
		Status:        domain.StatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func newExpirationTestApp(t *testing.T, svc ExpirationService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterExpirationRoutes(app, svc); err != nil {
		t.Fatalf("RegisterExpirationRoutes() error = %v", err)
	}

	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

func TestExpirationIntegration_Create(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		createFn: func(_ context.Context, params service.CreateParams) (*domain.Expiration, error) {
			if params.Concept != "Insurance policy" {
				t.Fatalf("concept = %q", params.Concept)
			}
			e := sampleExpiration()
			e.DueDate = domain.DateOnly(params.DueDate)
			return e, nil
		},
	}

	app := newExpirationTestApp(t, svc)

	body := `{"dueDate":"2027-01-15","concept":"Insurance policy","responsibleId":"user-1","priorityId":"prio-1","sectorId":"sector-1"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/expirations", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(respBody))
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["id"] != "exp-1" {
		t.Fatalf("id = %v, want exp-1", parsed["id"])
	}
	if parsed["dueDate"] != "2027-01-15" {
		t.Fatalf("dueDate = %v, want 2027-01-15", parsed["dueDate"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/expirations", `{"dueDate":"not-a-date","concept":"x"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed date", resp.StatusCode)
	}
}

func TestExpirationIntegration_CreateValidationError(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		createFn: func(_ context.Context, _ service.CreateParams) (*domain.Expiration, error) {
			return nil, fmt.Errorf("%w: concept is required", domain.ErrValidation)
		},
	}

	app := newExpirationTestApp(t, svc)

	body := `{"dueDate":"2027-01-15","responsibleId":"user-1","priorityId":"prio-1","sectorId":"sector-1"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/expirations", body)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", resp.StatusCode, string(respBody))
	}
}

func TestExpirationIntegration_RenewInvalidTransition(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		renewFn: func(_ context.Context, id string, _ time.Time, _ string, _ *string) (*domain.Expiration, error) {
			return nil, fmt.Errorf("%w: renewal date must be after today", domain.ErrInvalidTransition)
		},
	}

	app := newExpirationTestApp(t, svc)

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/expirations/exp-7/renew", `{"newDate":"2020-01-01"}`)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestExpirationIntegration_RenewReturnsReplacement(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		renewFn: func(_ context.Context, id string, newDate time.Time, notes string, _ *string) (*domain.Expiration, error) {
			if id != "exp-1" {
				t.Fatalf("id = %q, want exp-1", id)
			}
			if notes != "renewed for a year" {
				t.Fatalf("notes = %q", notes)
			}
			replacement := sampleExpiration()
			replacement.ID = "exp-2"
			replacement.DueDate = domain.DateOnly(newDate)
			replacement.Notes = "Continuation of expiration exp-1"
			return replacement, nil
		},
	}

	app := newExpirationTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/expirations/exp-1/renew",
		`{"newDate":"2027-06-01","notes":"renewed for a year"}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["id"] != "exp-2" {
		t.Fatalf("id = %v, want exp-2", parsed["id"])
	}
	if parsed["dueDate"] != "2027-06-01" {
		t.Fatalf("dueDate = %v, want 2027-06-01", parsed["dueDate"])
	}
}

func TestExpirationIntegration_ChangeStatus(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		changeStatusFn: func(_ context.Context, id string, status domain.Status, _ string, _ *string) (*domain.Expiration, error) {
			if status != domain.StatusInProgress {
				t.Fatalf("status = %s, want IN_PROGRESS", status)
			}
			e := sampleExpiration()
			e.Status = status
			return e, nil
		},
	}

	app := newExpirationTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/expirations/exp-1/status",
		`{"status":"in progress"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/expirations/exp-1/status", `{"status":"bogus"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown status", resp.StatusCode)
	}
}

func TestExpirationIntegration_GetNotFound(t *testing.T) {
	t.Parallel()

	app := newExpirationTestApp(t, &stubExpirationService{})

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/expirations/missing", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestExpirationIntegration_SearchFilters(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		searchFn: func(_ context.Context, params repository.SearchParams) ([]domain.Expiration, error) {
			if params.Text != "insurance" {
				t.Fatalf("text = %q, want insurance", params.Text)
			}
			if params.Status == nil || *params.Status != domain.StatusPending {
				t.Fatalf("status filter = %v, want PENDING", params.Status)
			}
			if params.Limit != 10 {
				t.Fatalf("limit = %d, want 10", params.Limit)
			}
			return []domain.Expiration{*sampleExpiration()}, nil
		},
	}

	app := newExpirationTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodGet,
		"/v1/expirations?q=insurance&status=pending&limit=10", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 1 {
		t.Fatalf("results = %d, want 1", len(parsed.Data))
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/expirations?limit=9999", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for limit overflow", resp.StatusCode)
	}
}

func TestExpirationIntegration_History(t *testing.T) {
	t.Parallel()

	svc := &stubExpirationService{
		historyFn: func(_ context.Context, id string) ([]domain.HistoryEntry, error) {
			return []domain.HistoryEntry{
				{ID: "h-2", ExpirationID: id, Action: domain.ActionStatusChanged, Description: "Status changed: PENDING -> OVERDUE"},
				{ID: "h-1", ExpirationID: id, Action: domain.ActionCreated, Description: "Created with due date 2027-01-15"},
			}, nil
		},
	}

	app := newExpirationTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodGet, "/v1/expirations/exp-1/history", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var parsed struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 2 {
		t.Fatalf("entries = %d, want 2", len(parsed.Data))
	}
	if parsed.Data[0]["action"] != "STATUS_CHANGED" {
		t.Fatalf("first action = %v, want newest first", parsed.Data[0]["action"])
	}
}
