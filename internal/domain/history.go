package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionType classifies a history ledger entry.
type ActionType string

const (
	ActionCreated       ActionType = "CREATED"
	ActionUpdated       ActionType = "UPDATED"
	ActionRenewed       ActionType = "RENEWED"
	ActionStatusChanged ActionType = "STATUS_CHANGED"
)

func (a ActionType) String() string { return string(a) }

func (a ActionType) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionRenewed, ActionStatusChanged:
		return true
	}
	return false
}

// HistoryEntry is one row of the append-only audit ledger. Entries are
// written once per mutating operation and never updated or deleted. ActorID
// is nil for system actions such as the reconciliation sweep.
type HistoryEntry struct {
	ID           string
	ExpirationID string
	Action       ActionType
	Description  string
	Notes        string
	ActorID      *string
	CreatedAt    time.Time
}

func (h *HistoryEntry) Validate() error {
	if strings.TrimSpace(h.ExpirationID) == "" {
		return fmt.Errorf("%w: expiration id is required", ErrValidation)
	}
	if !h.Action.IsValid() {
		return fmt.Errorf("%w: invalid action type %q", ErrValidation, h.Action)
	}
	if strings.TrimSpace(h.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}
