package progress

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/model"
)

// Day and Week are the calendar units used by the calculator.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var (
	hundred = decimal.NewFromInt(100)

	// OnTrackTolerance is the fraction of the expected amount a challenge
	// must hold to count as on track.
	OnTrackTolerance = decimal.RequireFromString("0.85")
)

// Percentage returns clamp(current/goal*100, 0, 100), or 0 when goal <= 0.
func Percentage(c model.Challenge) decimal.Decimal {
	if !c.GoalAmount.IsPositive() {
		return decimal.Zero
	}
	pct := c.CurrentAmount.Div(c.GoalAmount).Mul(hundred)
	return clamp(pct, decimal.Zero, hundred)
}

// Compute derives the progress record for c at now.
func Compute(c model.Challenge, now time.Time) model.ChallengeProgress {
	p := model.ChallengeProgress{
		ChallengeID:        c.ID,
		ProgressPercentage: Percentage(c),
		RemainingAmount:    decimal.Max(c.GoalAmount.Sub(c.CurrentAmount), decimal.Zero),
		DaysLeft:           ceilUnits(c.Deadline.Sub(now), Day),
		WeeksPassed:        floorUnits(now.Sub(c.CreatedAt), Week),
		TotalWeeks:         max(ceilUnits(c.Deadline.Sub(c.CreatedAt), Week), 1),
		WeeklyTarget:       c.WeeklyAmount,
		ExpectedAmount:     decimal.Zero,
	}

	if !c.GoalAmount.IsPositive() {
		// Degenerate goal: nothing is expected and nothing is on track.
		return p
	}

	expected := decimal.NewFromInt(int64(p.WeeksPassed)).Mul(c.WeeklyAmount)
	p.ExpectedAmount = decimal.Min(expected, c.GoalAmount)
	p.OnTrack = c.CurrentAmount.GreaterThanOrEqual(p.ExpectedAmount.Mul(OnTrackTolerance))
	return p
}

// IsCompleted reports whether the challenge reached its goal.
func IsCompleted(c model.Challenge) bool {
	return c.CurrentAmount.GreaterThanOrEqual(c.GoalAmount)
}

// Participant summarizes user's contributions to c.
func Participant(c model.Challenge, user string, contributions []model.Contribution) model.ParticipantProgress {
	pp := model.ParticipantProgress{
		ChallengeID:      c.ID,
		Participant:      user,
		TotalContributed: decimal.Zero,
		SharePercentage:  decimal.Zero,
	}

	var mine []model.Contribution
	for _, contrib := range contributions {
		if contrib.ChallengeID != c.ID || contrib.Contributor != user {
			continue
		}
		mine = append(mine, contrib)
		pp.TotalContributed = pp.TotalContributed.Add(contrib.Amount)
		if contrib.Timestamp.After(pp.LastContribution) {
			pp.LastContribution = contrib.Timestamp
		}
	}
	pp.ContributionCount = len(mine)
	pp.CurrentStreak = CurrentStreak(mine)

	pp.SharePercentage = Share(pp.TotalContributed, c.CurrentAmount)
	return pp
}

// Share returns part as a percentage of total, clamped to [0, 100], or 0
// when total <= 0.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return clamp(part.Div(total).Mul(hundred), decimal.Zero, hundred)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

// ceilUnits returns max(ceil(d/unit), 0).
func ceilUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + unit - 1) / unit)
}

// floorUnits returns max(floor(d/unit), 0).
func floorUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / unit)
}
