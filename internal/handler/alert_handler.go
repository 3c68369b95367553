package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/calerio/duetrack/internal/service"
	"github.com/gofiber/fiber/v2"
)

type AlertService interface {
	AddRule(ctx context.Context, params service.RuleParams) (*domain.AlertRule, error)
	GetRule(ctx context.Context, id string) (*domain.AlertRule, error)
	UpdateRule(ctx context.Context, id string, update repository.RuleUpdate) (*domain.AlertRule, error)
	RemoveRule(ctx context.Context, id string) error
	ListRules(ctx context.Context, expirationID string) ([]domain.AlertRule, error)
	ResetRule(ctx context.Context, id string) (*domain.AlertRule, error)
	ListAttempts(ctx context.Context, ruleID string) ([]domain.AlertAttempt, error)
}

type AlertProcessor interface {
	ProcessDueAlerts(ctx context.Context, asOf time.Time) (int, error)
}

type AlertHandler struct {
	service   AlertService
	processor AlertProcessor
}

func NewAlertHandler(service AlertService, processor AlertProcessor) (*AlertHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("alert service is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("alert processor is required")
	}
	return &AlertHandler{service: service, processor: processor}, nil
}

func RegisterAlertRoutes(router fiber.Router, service AlertService, processor AlertProcessor) error {
	h, err := NewAlertHandler(service, processor)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/expirations/:id/rules", h.AddRule)
	v1.Get("/expirations/:id/rules", h.ListRules)
	v1.Get("/rules/:id", h.GetRule)
	v1.Patch("/rules/:id", h.UpdateRule)
	v1.Delete("/rules/:id", h.RemoveRule)
	v1.Post("/rules/:id/reset", h.ResetRule)
	v1.Get("/rules/:id/attempts", h.ListAttempts)
	v1.Post("/alerts/process", h.ProcessAlerts)

	return nil
}

type addRuleRequest struct {
	OffsetDays int  `json:"offsetDays"`
	MaxFires   int  `json:"maxFires"`
	Email      bool `json:"email"`
	Push       bool `json:"push"`
	Desktop    bool `json:"desktop"`
	Active     bool `json:"active"`
}

type updateRuleRequest struct {
	OffsetDays *int  `json:"offsetDays"`
	MaxFires   *int  `json:"maxFires"`
	Email      *bool `json:"email"`
	Push       *bool `json:"push"`
	Desktop    *bool `json:"desktop"`
	Active     *bool `json:"active"`
}

type ruleResponse struct {
	ID           string    `json:"id"`
	ExpirationID string    `json:"expirationId"`
	OffsetDays   int       `json:"offsetDays"`
	FiredCount   int       `json:"firedCount"`
	MaxFires     int       `json:"maxFires"`
	Email        bool      `json:"email"`
	Push         bool      `json:"push"`
	Desktop      bool      `json:"desktop"`
	Active       bool      `json:"active"`
	Exhausted    bool      `json:"exhausted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type attemptResponse struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"ruleId"`
	Channel     string    `json:"channel"`
	Outcome     string    `json:"outcome"`
	ErrorDetail *string   `json:"errorDetail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *AlertHandler) AddRule(c *fiber.Ctx) error {
	var req addRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rule, err := h.service.AddRule(c.Context(), service.RuleParams{
		ExpirationID: c.Params("id"),
		OffsetDays:   req.OffsetDays,
		MaxFires:     req.MaxFires,
		Email:        req.Email,
		Push:         req.Push,
		Desktop:      req.Desktop,
		Active:       req.Active,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toRuleResponse(rule))
}

func (h *AlertHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.service.ListRules(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]ruleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, toRuleResponse(&rules[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *AlertHandler) GetRule(c *fiber.Ctx) error {
	rule, err := h.service.GetRule(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRuleResponse(rule))
}

func (h *AlertHandler) UpdateRule(c *fiber.Ctx) error {
	var req updateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rule, err := h.service.UpdateRule(c.Context(), c.Params("id"), repository.RuleUpdate{
		OffsetDays: req.OffsetDays,
		MaxFires:   req.MaxFires,
		Email:      req.Email,
		Push:       req.Push,
		Desktop:    req.Desktop,
		Active:     req.Active,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRuleResponse(rule))
}

func (h *AlertHandler) RemoveRule(c *fiber.Ctx) error {
	if err := h.service.RemoveRule(c.Context(), c.Params("id")); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AlertHandler) ResetRule(c *fiber.Ctx) error {
	rule, err := h.service.ResetRule(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRuleResponse(rule))
}

func (h *AlertHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.service.ListAttempts(c.Context(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, attemptResponse{
			ID:          attempt.ID,
			RuleID:      attempt.RuleID,
			Channel:     attempt.Channel.String(),
			Outcome:     attempt.Outcome.String(),
			ErrorDetail: attempt.ErrorDetail,
			CreatedAt:   attempt.CreatedAt,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

// ProcessAlerts triggers a due-alert dispatch pass immediately, outside the
// periodic scanner.
func (h *AlertHandler) ProcessAlerts(c *fiber.Ctx) error {
	succeeded, err := h.processor.ProcessDueAlerts(c.Context(), time.Now())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"succeeded": succeeded})
}

func toRuleResponse(r *domain.AlertRule) ruleResponse {
	return ruleResponse{
		ID:           r.ID,
		ExpirationID: r.ExpirationID,
		OffsetDays:   r.OffsetDays,
		FiredCount:   r.FiredCount,
		MaxFires:     r.MaxFires,
		Email:        r.Email,
		Push:         r.Push,
		Desktop:      r.Desktop,
		Active:       r.Active,
		Exhausted:    r.Exhausted(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
