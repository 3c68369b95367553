package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of an expiration.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusOverdue    Status = "OVERDUE"
	StatusRenewed    Status = "RENEWED"
	StatusInProgress Status = "IN_PROGRESS"
)

func (s Status) String() string { return string(s) }

// DisplayName renders the status for human-facing surfaces such as mail
// bodies, where the storage form (IN_PROGRESS) would read as a raw constant.
func (s Status) DisplayName() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusOverdue:
		return "Overdue"
	case StatusRenewed:
		return "Renewed"
	case StatusInProgress:
		return "In progress"
	}
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusOverdue, StatusRenewed, StatusInProgress:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle state machine allows moving
// from s to next. Renewed is terminal; a renewal produces a fresh record
// instead of reusing the current one.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusOverdue || next == StatusRenewed || next == StatusInProgress
	case StatusOverdue:
		return next == StatusRenewed || next == StatusInProgress
	case StatusInProgress:
		return next == StatusPending || next == StatusOverdue || next == StatusRenewed
	case StatusRenewed:
		return false
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	st := Status(normalized)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Expiration is a tracked obligation with a due date. Status never changes
// implicitly on read; only explicit transitions and the reconciliation sweep
// write it.
type Expiration struct {
	ID            string
	DueDate       time.Time
	Concept       string
	ResponsibleID string
	PriorityID    string
	SectorID      string
	Status        Status
	Notes         string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e *Expiration) Validate() error {
	if e.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrValidation)
	}
	if strings.TrimSpace(e.Concept) == "" {
		return fmt.Errorf("%w: concept is required", ErrValidation)
	}
	if strings.TrimSpace(e.ResponsibleID) == "" {
		return fmt.Errorf("%w: responsible is required", ErrValidation)
	}
	if strings.TrimSpace(e.PriorityID) == "" {
		return fmt.Errorf("%w: priority is required", ErrValidation)
	}
	if strings.TrimSpace(e.SectorID) == "" {
		return fmt.Errorf("%w: sector is required", ErrValidation)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, e.Status)
	}
	return nil
}

// DaysUntil returns the whole calendar days between asOf and the due date.
// Negative values mean the due date has passed.
func (e *Expiration) DaysUntil(asOf time.Time) int {
	due := DateOnly(e.DueDate)
	from := DateOnly(asOf)
	return int(due.Sub(from).Hours() / 24)
}

func (e *Expiration) IsExpired(asOf time.Time) bool {
	return e.DaysUntil(asOf) < 0
}

// DateOnly truncates t to midnight UTC so day arithmetic ignores clock time.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
