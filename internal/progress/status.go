package progress

import (
	"time"

	"github.com/stellarsave/stellarsave/internal/model"
)

// Status classifies a challenge. It is never stored: StatusOf recomputes it
// from the challenge fields and the current time on every call.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// StatusOf classifies c at now. Priority: completed, expired, active, cancelled.
func StatusOf(c model.Challenge, now time.Time) Status {
	switch {
	case IsCompleted(c):
		return StatusCompleted
	case now.After(c.Deadline):
		return StatusExpired
	case c.IsActive:
		return StatusActive
	default:
		return StatusCancelled
	}
}
