package progress

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/model"
)

// Stats recomputes a user's savings aggregate from scratch.
//
// challenges is the user's challenge set; contributions may include other
// contributors and are filtered to user.
func Stats(user string, challenges []model.Challenge, contributions []model.Contribution, balance decimal.Decimal, now time.Time) model.SavingsStats {
	var mine []model.Contribution
	total := decimal.Zero
	for _, c := range contributions {
		if c.Contributor != user {
			continue
		}
		mine = append(mine, c)
		total = total.Add(c.Amount)
	}

	s := model.SavingsStats{
		User:                      user,
		TotalSaved:                total,
		SaveCoinBalance:           balance,
		CurrentStreak:             CurrentStreak(mine),
		LongestStreak:             LongestStreak(mine),
		TotalContributions:        len(mine),
		AverageWeeklyContribution: WeeklyAverage(mine),
	}
	for _, c := range challenges {
		switch StatusOf(c, now) {
		case StatusActive:
			s.ActiveChallenges++
		case StatusCompleted:
			s.CompletedChallenges++
		}
	}
	return s
}
