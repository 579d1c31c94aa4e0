package progress

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/model"
)

// bucketsPerYear covers buckets 0..52 (day 365 of a leap year is bucket 52).
const bucketsPerYear = 53

// WeekBucket returns floor(days-since-year-start / 7) for t in UTC.
func WeekBucket(t time.Time) int {
	return (t.UTC().YearDay() - 1) / 7
}

// linearBucket orders buckets across years.
func linearBucket(t time.Time) int {
	return t.UTC().Year()*bucketsPerYear + WeekBucket(t)
}

// ChallengeWeek is the contract's week number: whole weeks since creation, plus one.
func ChallengeWeek(createdAt, at time.Time) int {
	return floorUnits(at.Sub(createdAt), Week) + 1
}

// distinctBuckets returns the set of linear buckets in descending order.
func distinctBuckets(contributions []model.Contribution) []int {
	sorted := append([]model.Contribution(nil), contributions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var buckets []int
	for _, c := range sorted {
		b := linearBucket(c.Timestamp)
		if len(buckets) > 0 && buckets[len(buckets)-1] == b {
			continue
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// CurrentStreak walks contributions from the most recent backwards and counts
// consecutive week buckets. A gap of more than one bucket ends the walk.
func CurrentStreak(contributions []model.Contribution) int {
	buckets := distinctBuckets(contributions)
	if len(buckets) == 0 {
		return 0
	}
	streak := 1
	for i := 1; i < len(buckets); i++ {
		if buckets[i-1]-buckets[i] != 1 {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak is the longest run of consecutive week buckets that each hold
// at least one contribution.
func LongestStreak(contributions []model.Contribution) int {
	buckets := distinctBuckets(contributions)
	if len(buckets) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(buckets); i++ {
		if buckets[i-1]-buckets[i] == 1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}

// WeeklyAverage is the total contributed divided by the number of distinct
// week buckets with contributions. Zero when there are none.
func WeeklyAverage(contributions []model.Contribution) decimal.Decimal {
	buckets := distinctBuckets(contributions)
	if len(buckets) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, c := range contributions {
		total = total.Add(c.Amount)
	}
	return total.Div(decimal.NewFromInt(int64(len(buckets)))).Round(7)
}
