package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/calerio/duetrack/internal/service"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 100
)

type ExpirationService interface {
	Create(ctx context.Context, params service.CreateParams) (*domain.Expiration, error)
	GetByID(ctx context.Context, id string) (*domain.Expiration, error)
	Update(ctx context.Context, id string, params service.UpdateParams, actor *string) (*domain.Expiration, error)
	Delete(ctx context.Context, id string) error
	Renew(ctx context.Context, id string, newDate time.Time, notes string, actor *string) (*domain.Expiration, error)
	ChangeStatus(ctx context.Context, id string, status domain.Status, notes string, actor *string) (*domain.Expiration, error)
	Search(ctx context.Context, params repository.SearchParams) ([]domain.Expiration, error)
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	Stats(ctx context.Context) (*service.DashboardStats, error)
}

type ExpirationHandler struct {
	service ExpirationService
}

func NewExpirationHandler(service ExpirationService) (*ExpirationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("expiration service is required")
	}
	return &ExpirationHandler{service: service}, nil
}

func RegisterExpirationRoutes(router fiber.Router, service ExpirationService) error {
	h, err := NewExpirationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/expirations", h.CreateExpiration)
	v1.Get("/expirations", h.SearchExpirations)
	v1.Get("/expirations/stats", h.GetStats)
	v1.Get("/expirations/:id", h.GetExpiration)
	v1.Patch("/expirations/:id", h.UpdateExpiration)
	v1.Delete("/expirations/:id", h.DeleteExpiration)
	v1.Post("/expirations/:id/renew", h.RenewExpiration)
	v1.Post("/expirations/:id/status", h.ChangeStatus)
	v1.Get("/expirations/:id/history", h.GetHistory)

	return nil
}

type createExpirationRequest struct {
	DueDate       string `json:"dueDate"`
	Concept       string `json:"concept"`
	ResponsibleID string `json:"responsibleId"`
	PriorityID    string `json:"priorityId"`
	SectorID      string `json:"sectorId"`
	Notes         string `json:"notes"`
	CreatedBy     string `json:"createdBy"`
}

type updateExpirationRequest struct {
	DueDate       *string `json:"dueDate"`
	Concept       *string `json:"concept"`
	ResponsibleID *string `json:"responsibleId"`
	PriorityID    *string `json:"priorityId"`
	SectorID      *string `json:"sectorId"`
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
	Actor         *string `json:"actor"`
}

type renewExpirationRequest struct {
	NewDate string  `json:"newDate"`
	Notes   string  `json:"notes"`
	Actor   *string `json:"actor"`
}

type changeStatusRequest struct {
	Status string  `json:"status"`
	Notes  string  `json:"notes"`
	Actor  *string `json:"actor"`
}

type expirationResponse struct {
	ID            string    `json:"id"`
	DueDate       string    `json:"dueDate"`
	Concept       string    `json:"concept"`
	ResponsibleID string    `json:"responsibleId"`
	PriorityID    string    `json:"priorityId"`
	SectorID      string    `json:"sectorId"`
	Status        string    `json:"status"`
	DaysUntil     int       `json:"daysUntil"`
	Expired       bool      `json:"expired"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type historyEntryResponse struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	ActorID     *string   `json:"actorId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type groupCountItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Color string `json:"color,omitempty"`
}

type statsResponse struct {
	ByStatus      []groupCountItem `json:"byStatus"`
	ByPriority    []groupCountItem `json:"byPriority"`
	BySector      []groupCountItem `json:"bySector"`
	ByResponsible []groupCountItem `json:"byResponsible"`
}

func (h *ExpirationHandler) CreateExpiration(c *fiber.Ctx) error {
	var req createExpirationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dueDate, err := parseDate(req.DueDate, "dueDate")
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.Context(), service.CreateParams{
		DueDate:       dueDate,
		Concept:       req.Concept,
		ResponsibleID: req.ResponsibleID,
		PriorityID:    req.PriorityID,
		SectorID:      req.SectorID,
		Notes:         req.Notes,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toExpirationResponse(created))
}

func (h *ExpirationHandler) GetExpiration(c *fiber.Ctx) error {
	expiration, err := h.service.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toExpirationResponse(expiration))
}

func (h *ExpirationHandler) UpdateExpiration(c *fiber.Ctx) error {
	var req updateExpirationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	params := service.UpdateParams{
		Concept:       req.Concept,
		ResponsibleID: req.ResponsibleID,
		PriorityID:    req.PriorityID,
		SectorID:      req.SectorID,
		Notes:         req.Notes,
	}
	if req.DueDate != nil {
		dueDate, err := parseDate(*req.DueDate, "dueDate")
		if err != nil {
			return toHTTPError(err)
		}
		params.DueDate = &dueDate
	}
	if req.Status != nil {
		status, err := domain.ParseStatusFromString(*req.Status)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	updated, err := h.service.Update(c.Context(), c.Params("id"), params, req.Actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toExpirationResponse(updated))
}

func (h *ExpirationHandler) DeleteExpiration(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ExpirationHandler) RenewExpiration(c *fiber.Ctx) error {
	var req renewExpirationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	newDate, err := parseDate(req.NewDate, "newDate")
	if err != nil {
		return toHTTPError(err)
	}

	replacement, err := h.service.Renew(c.Context(), c.Params("id"), newDate, req.Notes, req.Actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toExpirationResponse(replacement))
}

func (h *ExpirationHandler) ChangeStatus(c *fiber.Ctx) error {
	var req changeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := domain.ParseStatusFromString(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.ChangeStatus(c.Context(), c.Params("id"), status, req.Notes, req.Actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toExpirationResponse(updated))
}

func (h *ExpirationHandler) SearchExpirations(c *fiber.Ctx) error {
	params, err := parseSearchParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	expirations, err := h.service.Search(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]expirationResponse, 0, len(expirations))
	for i := range expirations {
		items = append(items, toExpirationResponse(&expirations[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *ExpirationHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.service.History(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyEntryResponse{
			ID:          entry.ID,
			Action:      entry.Action.String(),
			Description: entry.Description,
			Notes:       entry.Notes,
			ActorID:     entry.ActorID,
			CreatedAt:   entry.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *ExpirationHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		ByStatus:      toGroupCountItems(stats.ByStatus),
		ByPriority:    toGroupCountItems(stats.ByPriority),
		BySector:      toGroupCountItems(stats.BySector),
		ByResponsible: toGroupCountItems(stats.ByResponsible),
	})
}

func parseSearchParams(c *fiber.Ctx) (repository.SearchParams, error) {
	params := repository.SearchParams{
		Text:  strings.TrimSpace(c.Query("q")),
		Limit: c.QueryInt("limit", defaultSearchLimit),
	}

	if params.Limit < 1 || params.Limit > maxSearchLimit {
		return repository.SearchParams{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxSearchLimit)
	}

	if v := strings.TrimSpace(c.Query("responsibleId")); v != "" {
		params.ResponsibleID = &v
	}
	if v := strings.TrimSpace(c.Query("priorityId")); v != "" {
		params.PriorityID = &v
	}
	if v := strings.TrimSpace(c.Query("sectorId")); v != "" {
		params.SectorID = &v
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status, err := domain.ParseStatusFromString(v)
		if err != nil {
			return repository.SearchParams{}, err
		}
		params.Status = &status
	}
	if v := strings.TrimSpace(c.Query("from")); v != "" {
		from, err := parseDate(v, "from")
		if err != nil {
			return repository.SearchParams{}, err
		}
		params.From = &from
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		to, err := parseDate(v, "to")
		if err != nil {
			return repository.SearchParams{}, err
		}
		params.To = &to
	}

	return params, nil
}

func parseDate(value string, field string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}

	t, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a YYYY-MM-DD date", domain.ErrValidation, field)
	}
	return t, nil
}

func toExpirationResponse(e *domain.Expiration) expirationResponse {
	now := time.Now()
	return expirationResponse{
		ID:            e.ID,
		DueDate:       e.DueDate.Format(time.DateOnly),
		Concept:       e.Concept,
		ResponsibleID: e.ResponsibleID,
		PriorityID:    e.PriorityID,
		SectorID:      e.SectorID,
		Status:        e.Status.String(),
		DaysUntil:     e.DaysUntil(now),
		Expired:       e.IsExpired(now),
		Notes:         e.Notes,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toGroupCountItems(counts []repository.GroupCount) []groupCountItem {
	items := make([]groupCountItem, 0, len(counts))
	for _, count := range counts {
		items = append(items, groupCountItem{
			Name:  count.Name,
			Count: count.Count,
			Color: count.Color,
		})
	}
	return items
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnsupportedChannel):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
