package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	now := start.Add(2 * Week)

	tests := []struct {
		name     string
		current  string
		goal     string
		weeks    int
		isActive bool
		want     Status
	}{
		{"completed beats everything", "100", "100", 4, true, StatusCompleted},
		{"completed even when inactive and expired", "150", "100", 1, false, StatusCompleted},
		{"expired", "50", "100", 1, true, StatusExpired},
		{"cancelled", "50", "100", 4, false, StatusCancelled},
		{"active", "50", "100", 4, true, StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := challenge(tt.goal, "10", tt.current, tt.weeks)
			c.IsActive = tt.isActive
			assert.Equal(t, tt.want, StatusOf(c, now))
		})
	}
}

func TestStatusOf_RecomputedFromTime(t *testing.T) {
	c := challenge("100", "10", "50", 4)

	assert.Equal(t, StatusActive, StatusOf(c, start.Add(Week)))
	assert.Equal(t, StatusExpired, StatusOf(c, start.Add(5*Week)))

	c.CurrentAmount = dec("100")
	assert.Equal(t, StatusCompleted, StatusOf(c, start.Add(5*Week)))
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
