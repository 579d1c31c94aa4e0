package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
	"github.com/stellarsave/stellarsave/internal/store"
)

// Milestones are the progress percentages that raise a notification when a
// contribution crosses them.
var Milestones = []decimal.Decimal{
	decimal.NewFromInt(25),
	decimal.NewFromInt(50),
	decimal.NewFromInt(75),
}

// DeadlineWarningDays is how close to its deadline an active challenge must
// be for Remind to warn.
const DeadlineWarningDays = 3

// Symbol is the display unit of challenge amounts.
const Symbol = "XLM"

func (e *Engine) notify(typ model.NotificationType, prio model.Priority, challengeID, format string, args ...any) model.Notification {
	n := model.Notification{
		ID:          e.ids.Generate(),
		Type:        typ,
		ChallengeID: challengeID,
		Message:     fmt.Sprintf(format, args...),
		Timestamp:   e.clock.Now(),
		Priority:    prio,
	}
	e.store.RecordNotification(n)
	return n
}

// notifyFailure records the user-visible error of a failed mutation.
func (e *Engine) notifyFailure(action, entityID string, err error) {
	msg := err.Error()
	if me := model.AsError(err); me != nil {
		msg = me.Message
		if me.EntityID != "" {
			entityID = me.EntityID
		}
	}
	e.notify(model.NotificationWarning, model.PriorityHigh, entityID, "%s failed: %s", action, msg)
}

// notifyContribution reports a confirmed contribution and any milestone or
// completion it caused. before and after are the challenge around the
// optimistic patch.
func (e *Engine) notifyContribution(before, after model.Challenge, amt decimal.Decimal) {
	e.notify(model.NotificationContribution, model.PriorityLow, after.ID,
		"Contributed %s to %s", amount.Format(amt, Symbol), after.Name)

	if progress.IsCompleted(after) && !progress.IsCompleted(before) {
		e.notify(model.NotificationCompletion, model.PriorityHigh, after.ID,
			"%s reached its goal of %s", after.Name, amount.Format(after.GoalAmount, Symbol))
		return
	}

	was, now := progress.Percentage(before), progress.Percentage(after)
	var crossed decimal.Decimal
	for _, m := range Milestones {
		if was.LessThan(m) && now.GreaterThanOrEqual(m) {
			crossed = m
		}
	}
	if crossed.IsPositive() {
		e.notify(model.NotificationMilestone, model.PriorityMedium, after.ID,
			"%s is %s%% funded", after.Name, crossed.String())
	}
}

// Remind checks the user's active challenges and records a reminder for
// each one behind schedule and a warning for each one close to its
// deadline. It returns the notifications it recorded.
func (e *Engine) Remind(ctx context.Context, user string) ([]model.Notification, error) {
	active, err := e.UserChallenges(ctx, user, store.Filter{Status: store.FilterActive, SortBy: store.SortDeadline})
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	var out []model.Notification
	for _, c := range active {
		p := progress.Compute(c, now)
		e.store.SetProgress(p)
		if p.DaysLeft > 0 && p.DaysLeft <= DeadlineWarningDays {
			out = append(out, e.notify(model.NotificationWarning, model.PriorityHigh, c.ID,
				"%s ends in %d day(s) with %s still to save", c.Name, p.DaysLeft, amount.Format(p.RemainingAmount, Symbol)))
		}
		if !p.OnTrack {
			short := p.ExpectedAmount.Sub(c.CurrentAmount)
			out = append(out, e.notify(model.NotificationReminder, model.PriorityMedium, c.ID,
				"%s is behind schedule by %s", c.Name, amount.Format(short, Symbol)))
		}
	}
	return out, nil
}
