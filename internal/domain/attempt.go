package domain

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies a single channel dispatch.
type Outcome string

const (
	OutcomeSent    Outcome = "SENT"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePending Outcome = "PENDING"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSent, OutcomeFailed, OutcomePending:
		return true
	}
	return false
}

func ParseOutcomeFromString(s string) (Outcome, error) {
	out := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !out.IsValid() {
		return "", fmt.Errorf("%w: invalid outcome %q", ErrValidation, s)
	}
	return out, nil
}

// AlertAttempt records one dispatch of an alert rule over one channel.
// ErrorDetail is set iff the outcome is FAILED.
type AlertAttempt struct {
	ID          string
	RuleID      string
	Channel     Channel
	Outcome     Outcome
	ErrorDetail *string
	CreatedAt   time.Time
}

func (a *AlertAttempt) Validate() error {
	if strings.TrimSpace(a.RuleID) == "" {
		return fmt.Errorf("%w: rule id is required", ErrValidation)
	}
	if !a.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, a.Channel)
	}
	if !a.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid outcome %q", ErrValidation, a.Outcome)
	}
	if a.Outcome == OutcomeFailed && (a.ErrorDetail == nil || strings.TrimSpace(*a.ErrorDetail) == "") {
		return fmt.Errorf("%w: failed attempt requires error detail", ErrValidation)
	}
	if a.Outcome != OutcomeFailed && a.ErrorDetail != nil {
		return fmt.Errorf("%w: error detail only allowed on failed attempts", ErrValidation)
	}
	return nil
}
