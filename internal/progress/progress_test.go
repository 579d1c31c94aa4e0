package progress

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/stellarsave/stellarsave/internal/model"
)

var start = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func challenge(goal, weekly, current string, weeks int) model.Challenge {
	return model.Challenge{
		ID:            "1",
		Name:          "Emergency fund",
		GoalAmount:    dec(goal),
		WeeklyAmount:  dec(weekly),
		CurrentAmount: dec(current),
		Participants:  []string{"GALICE"},
		Creator:       "GALICE",
		CreatedAt:     start,
		Deadline:      start.Add(time.Duration(weeks) * Week),
		IsActive:      true,
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name          string
		goal, current string
		want          string
	}{
		{"zero progress", "1000", "0", "0"},
		{"partial", "1000", "50", "5"},
		{"exact goal", "100", "100", "100"},
		{"overfunded clamps", "100", "250", "100"},
		{"zero goal", "0", "50", "0"},
		{"negative goal", "-10", "50", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := challenge(tt.goal, "1", tt.current, 4)
			got := Percentage(c)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCompute_OneWeekIn(t *testing.T) {
	c := challenge("1000", "50", "50", 12)

	p := Compute(c, start.Add(Week))

	assert.Equal(t, "1", p.ChallengeID)
	assert.True(t, p.ProgressPercentage.Equal(dec("5")))
	assert.True(t, p.RemainingAmount.Equal(dec("950")))
	assert.Equal(t, 1, p.WeeksPassed)
	assert.Equal(t, 12, p.TotalWeeks)
	assert.Equal(t, 77, p.DaysLeft)
	assert.True(t, p.ExpectedAmount.Equal(dec("50")))
	assert.True(t, p.WeeklyTarget.Equal(dec("50")))
	assert.True(t, p.OnTrack)
}

func TestCompute_ToleranceBand(t *testing.T) {
	c := challenge("1000", "100", "170", 12)

	// Two weeks in: expected 200, 85% of that is 170.
	p := Compute(c, start.Add(2*Week))
	assert.True(t, p.OnTrack)

	c.CurrentAmount = dec("169.99")
	p = Compute(c, start.Add(2*Week))
	assert.False(t, p.OnTrack)
}

func TestCompute_ExpectedCappedAtGoal(t *testing.T) {
	c := challenge("300", "100", "0", 12)
	p := Compute(c, start.Add(10*Week))
	assert.True(t, p.ExpectedAmount.Equal(dec("300")))
}

func TestCompute_AfterDeadline(t *testing.T) {
	c := challenge("1000", "50", "200", 4)
	p := Compute(c, start.Add(6*Week))

	assert.Equal(t, 0, p.DaysLeft)
	assert.Equal(t, 6, p.WeeksPassed)
	assert.Equal(t, 4, p.TotalWeeks)
}

func TestCompute_BeforeCreation(t *testing.T) {
	c := challenge("1000", "50", "0", 4)
	p := Compute(c, start.Add(-Day))

	assert.Equal(t, 0, p.WeeksPassed)
	assert.True(t, p.ExpectedAmount.IsZero())
	assert.True(t, p.OnTrack)
}

func TestCompute_DegenerateGoal(t *testing.T) {
	for _, goal := range []string{"0", "-100"} {
		c := challenge(goal, "10", "5", 4)
		assert.NotPanics(t, func() {
			p := Compute(c, start.Add(2*Week))
			assert.True(t, p.ProgressPercentage.IsZero())
			assert.False(t, p.OnTrack)
			assert.True(t, p.ExpectedAmount.IsZero())
		})
	}
}

func TestCompute_DeadlineBeforeCreation(t *testing.T) {
	c := challenge("1000", "50", "0", 4)
	c.Deadline = c.CreatedAt.Add(-Week)

	p := Compute(c, start)
	assert.Equal(t, 1, p.TotalWeeks, "total weeks never drops below one")
	assert.Equal(t, 0, p.DaysLeft)
}

func TestCompute_PartialDayRoundsUp(t *testing.T) {
	c := challenge("1000", "50", "0", 1)
	p := Compute(c, c.Deadline.Add(-time.Hour))
	assert.Equal(t, 1, p.DaysLeft)
}

func TestParticipant(t *testing.T) {
	c := challenge("1000", "50", "150", 12)
	contributions := []model.Contribution{
		{ChallengeID: "1", Contributor: "GALICE", Amount: dec("50"), Timestamp: start},
		{ChallengeID: "1", Contributor: "GBOB", Amount: dec("50"), Timestamp: start.Add(Day)},
		{ChallengeID: "1", Contributor: "GALICE", Amount: dec("50"), Timestamp: start.Add(Week)},
		{ChallengeID: "2", Contributor: "GALICE", Amount: dec("999"), Timestamp: start.Add(Week)},
	}

	pp := Participant(c, "GALICE", contributions)

	assert.Equal(t, 2, pp.ContributionCount)
	assert.True(t, pp.TotalContributed.Equal(dec("100")))
	assert.Equal(t, start.Add(Week), pp.LastContribution)
	assert.Equal(t, 2, pp.CurrentStreak)
	assert.Equal(t, "66.67", pp.SharePercentage.Round(2).String())
}

func TestParticipant_EmptyChallenge(t *testing.T) {
	c := challenge("1000", "50", "0", 12)
	pp := Participant(c, "GALICE", nil)

	assert.Equal(t, 0, pp.ContributionCount)
	assert.True(t, pp.SharePercentage.IsZero())
	assert.Equal(t, 0, pp.CurrentStreak)
}

func TestShare(t *testing.T) {
	assert.True(t, Share(dec("25"), dec("100")).Equal(dec("25")))
	assert.True(t, Share(dec("5"), dec("0")).IsZero())
	assert.True(t, Share(dec("150"), dec("100")).Equal(dec("100")))
}
