package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stellarsave/stellarsave/internal/model"
)

func contribAt(ts ...time.Time) []model.Contribution {
	out := make([]model.Contribution, len(ts))
	for i, t := range ts {
		out[i] = model.Contribution{ChallengeID: "1", Contributor: "GALICE", Amount: dec("10"), Timestamp: t}
	}
	return out
}

func jan(day int) time.Time {
	return time.Date(2025, 1, day, 9, 0, 0, 0, time.UTC)
}

func TestWeekBucket(t *testing.T) {
	assert.Equal(t, 0, WeekBucket(jan(1)))
	assert.Equal(t, 0, WeekBucket(jan(7)))
	assert.Equal(t, 1, WeekBucket(jan(8)))
	assert.Equal(t, 52, WeekBucket(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestChallengeWeek(t *testing.T) {
	assert.Equal(t, 1, ChallengeWeek(start, start))
	assert.Equal(t, 1, ChallengeWeek(start, start.Add(6*Day)))
	assert.Equal(t, 2, ChallengeWeek(start, start.Add(Week)))
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Contribution
		want int
	}{
		{"empty", nil, 0},
		{"single", contribAt(jan(1)), 1},
		{"same bucket counts once", contribAt(jan(1), jan(2), jan(3)), 1},
		{"three consecutive", contribAt(jan(1), jan(8), jan(15)), 3},
		{"unsorted input", contribAt(jan(15), jan(1), jan(8)), 3},
		{"gap breaks from most recent", contribAt(jan(1), jan(8), jan(29)), 1},
		{"old run ignored", contribAt(jan(1), jan(8), jan(15), jan(29), jan(30)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStreak(tt.in))
		})
	}
}

func TestCurrentStreak_AcrossYearBoundary(t *testing.T) {
	lastBucket := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC) // leap year, bucket 52
	firstBucket := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, CurrentStreak(contribAt(lastBucket, firstBucket)))
}

func TestLongestStreak(t *testing.T) {
	assert.Equal(t, 0, LongestStreak(nil))
	assert.Equal(t, 3, LongestStreak(contribAt(jan(1), jan(8), jan(15), jan(29))))
	assert.Equal(t, 2, LongestStreak(contribAt(jan(1), jan(15), jan(22))))

	// The longest run is in the past; the current one is shorter.
	in := contribAt(jan(1), jan(8), jan(15), jan(22), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 4, LongestStreak(in))
	assert.Equal(t, 1, CurrentStreak(in))
}

func TestWeeklyAverage(t *testing.T) {
	assert.True(t, WeeklyAverage(nil).IsZero())

	in := contribAt(jan(1), jan(2), jan(8))
	// 30 across two buckets.
	assert.True(t, WeeklyAverage(in).Equal(dec("15")))
}
