package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calerio/duetrack/internal/channel"
	"github.com/calerio/duetrack/internal/domain"
	"github.com/calerio/duetrack/internal/observability"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultChannelTimeout = 30 * time.Second

// Dispatcher fans a due alert rule out to its enabled channels. Channels are
// isolated from each other: one failing or slow channel never prevents the
// others from being attempted. Every send is preceded by claiming one unit of
// the rule's fire budget through an optimistic counter guard, so concurrent
// scheduler passes never double-send past maxFires; failed and disabled
// sends refund their claim.
type Dispatcher struct {
	rules          repository.AlertRuleRepository
	attempts       repository.AttemptRepository
	lookups        repository.LookupRepository
	senders        map[domain.Channel]channel.Sender
	mode           repository.MatchMode
	channelTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
}

func NewDispatcher(
	rules repository.AlertRuleRepository,
	attempts repository.AttemptRepository,
	lookups repository.LookupRepository,
	senders []channel.Sender,
	mode repository.MatchMode,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Dispatcher, error) {
	if rules == nil {
		return nil, fmt.Errorf("alert rule repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if lookups == nil {
		return nil, fmt.Errorf("lookup repository is required")
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("at least one channel sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byChannel := make(map[domain.Channel]channel.Sender, len(senders))
	for _, sender := range senders {
		if sender == nil {
			return nil, fmt.Errorf("nil channel sender")
		}
		if _, exists := byChannel[sender.Channel()]; exists {
			return nil, fmt.Errorf("duplicate sender for channel %s", sender.Channel())
		}
		byChannel[sender.Channel()] = sender
	}

	return &Dispatcher{
		rules:          rules,
		attempts:       attempts,
		lookups:        lookups,
		senders:        byChannel,
		mode:           mode,
		channelTimeout: defaultChannelTimeout,
		logger:         logger,
		metrics:        metrics,
		now:            time.Now,
	}, nil
}

// WithNow overrides the clock. Test hook.
func (d *Dispatcher) WithNow(now func() time.Time) *Dispatcher {
	if now != nil {
		d.now = now
	}
	return d
}

// WithChannelTimeout bounds each channel send.
func (d *Dispatcher) WithChannelTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.channelTimeout = timeout
	}
	return d
}

// ProcessDueAlerts pulls the due rule set as of asOf and dispatches each
// rule. Channel failures are recorded as failed attempts and never surface
// here; the returned count is the number of rules with at least one
// successful channel. Safe to invoke concurrently with itself.
func (d *Dispatcher) ProcessDueAlerts(ctx context.Context, asOf time.Time) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dueRules, err := d.rules.DueRules(ctx, asOf, d.mode)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve due alert rules: %w", err)
	}
	d.metrics.AddDueRulesSelected(len(dueRules))

	succeeded := 0
	for i := range dueRules {
		if ctx.Err() != nil {
			break
		}
		if d.Dispatch(ctx, dueRules[i], asOf) {
			succeeded++
		}
	}

	if len(dueRules) > 0 {
		d.logger.Info("alert pass finished",
			zap.Int("due", len(dueRules)),
			zap.Int("succeeded", succeeded),
		)
	}

	return succeeded, nil
}

// Dispatch sends one due rule across its enabled channels and returns true
// if at least one channel succeeded. Disabled channels are skipped without
// recording an attempt; every other error becomes a failed attempt. One unit
// of the fire budget is claimed via a conditional update keyed on the
// fired-count snapshot BEFORE each send, so two concurrent passes that read
// the same snapshot can never both deliver: the loser of the claim stops
// before touching the channel. Failed and disabled sends refund the claim,
// keeping the budget a count of successful sends only.
func (d *Dispatcher) Dispatch(ctx context.Context, due repository.DueRule, asOf time.Time) bool {
	msg := d.buildMessage(ctx, due, asOf)
	snapshot := due.Rule.FiredCount
	sentAny := false

	for _, ch := range due.Rule.EnabledChannels() {
		if snapshot >= due.Rule.MaxFires {
			break
		}

		sender, ok := d.senders[ch]
		if !ok {
			detail := fmt.Sprintf("no sender registered for channel %s", ch)
			d.recordAttempt(ctx, due.Rule.ID, ch, domain.OutcomeFailed, &detail)
			continue
		}

		claimed, err := d.rules.IncrementFiredCount(ctx, due.Rule.ID, snapshot)
		if err != nil {
			d.logger.Error("failed to claim fire budget",
				zap.String("ruleId", due.Rule.ID),
				zap.Error(err),
			)
			break
		}
		if !claimed {
			d.logger.Warn("fire budget claimed concurrently, stopping dispatch",
				zap.String("ruleId", due.Rule.ID),
			)
			break
		}
		snapshot++

		start := d.now()
		err = d.send(ctx, sender, msg)
		d.metrics.ObserveDispatchDuration(ch.String(), d.now().Sub(start))

		if errors.Is(err, channel.ErrDisabled) {
			if d.refundClaim(ctx, due.Rule.ID, snapshot) {
				snapshot--
			}
			d.logger.Debug("channel disabled, skipping",
				zap.String("ruleId", due.Rule.ID),
				zap.String("channel", ch.String()),
			)
			continue
		}
		if err != nil {
			if d.refundClaim(ctx, due.Rule.ID, snapshot) {
				snapshot--
			}
			detail := err.Error()
			d.recordAttempt(ctx, due.Rule.ID, ch, domain.OutcomeFailed, &detail)
			d.logger.Warn("channel dispatch failed",
				zap.String("ruleId", due.Rule.ID),
				zap.String("channel", ch.String()),
				zap.Error(err),
			)
			continue
		}

		sentAny = true
		d.recordAttempt(ctx, due.Rule.ID, ch, domain.OutcomeSent, nil)
	}

	return sentAny
}

// refundClaim hands an unused budget unit back. The decrement carries the
// same counter guard as the claim, so a refund can never collide with a
// concurrent pass's fresh claim; losing the guard leaves the unit consumed.
func (d *Dispatcher) refundClaim(ctx context.Context, ruleID string, fromCount int) bool {
	refunded, err := d.rules.DecrementFiredCount(ctx, ruleID, fromCount)
	if err != nil {
		d.logger.Error("failed to refund fire budget",
			zap.String("ruleId", ruleID),
			zap.Error(err),
		)
		return false
	}
	if !refunded {
		d.logger.Warn("fire budget refund lost to a concurrent claim",
			zap.String("ruleId", ruleID),
		)
		return false
	}
	return true
}

func (d *Dispatcher) send(ctx context.Context, sender channel.Sender, msg channel.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.channelTimeout)
	defer cancel()
	return sender.Send(sendCtx, msg)
}

// buildMessage resolves the lookups and derives the day count from the same
// asOf that selected the rule, so a catch-up pass renders the day the rule
// matched on rather than the wall clock.
func (d *Dispatcher) buildMessage(ctx context.Context, due repository.DueRule, asOf time.Time) channel.Message {
	msg := channel.Message{
		Rule:       due.Rule,
		Expiration: due.Expiration,
		DaysUntil:  due.Expiration.DaysUntil(asOf),
	}

	recipient, err := d.lookups.GetUser(ctx, due.Expiration.ResponsibleID)
	if err != nil {
		d.logger.Warn("failed to resolve responsible party",
			zap.String("expirationId", due.Expiration.ID),
			zap.String("responsibleId", due.Expiration.ResponsibleID),
			zap.Error(err),
		)
	} else {
		msg.Recipient = recipient
	}

	if priority, err := d.lookups.GetPriority(ctx, due.Expiration.PriorityID); err == nil {
		msg.Priority = priority
	}
	if sector, err := d.lookups.GetSector(ctx, due.Expiration.SectorID); err == nil {
		msg.Sector = sector
	}

	return msg
}

func (d *Dispatcher) recordAttempt(ctx context.Context, ruleID string, ch domain.Channel, outcome domain.Outcome, errDetail *string) {
	attempt := &domain.AlertAttempt{
		ID:          uuid.NewString(),
		RuleID:      ruleID,
		Channel:     ch,
		Outcome:     outcome,
		ErrorDetail: errDetail,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.attempts.Create(ctx, attempt); err != nil {
		d.logger.Error("failed to record alert attempt",
			zap.String("ruleId", ruleID),
			zap.String("channel", ch.String()),
			zap.Error(err),
		)
		return
	}
	d.metrics.IncAlertAttempt(ch.String(), outcome.String())
}
